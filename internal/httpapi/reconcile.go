package httpapi

import (
	"log"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// RegisterGatewayReconciliation wires Backend A's gateway event stream to
// prune history/folder records when a channel or category is deleted
// out-of-band (e.g. a moderator deletes it directly in Discord), ported
// from original_source/discord_bot.rs::Handler's delete hooks.
func (s *State) RegisterGatewayReconciliation() {
	s.Discord.Session.AddHandler(func(_ *discordgo.Session, ev *discordgo.ChannelDelete) {
		switch ev.Type {
		case discordgo.ChannelTypeGuildCategory:
			s.reconcileCategoryDeleted(ev.ID)
		case discordgo.ChannelTypeGuildText:
			s.reconcileChannelDeleted(ev.ID)
		}
	})
}

func (s *State) reconcileChannelDeleted(channelID string) {
	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	filtered := records[:0:0]
	for _, rec := range records {
		if rec.ChannelID != channelID {
			filtered = append(filtered, rec)
		}
	}
	if len(filtered) == len(records) {
		return
	}
	if err := s.Store.SaveHistory(s.Cfg.HistoryFile, filtered); err != nil {
		log.Printf("[HTTPAPI] reconcile channel_delete %s: %v", channelID, err)
	}
}

func (s *State) reconcileCategoryDeleted(containerID string) {
	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	filtered := folders[:0:0]
	for _, f := range folders {
		if strconv.FormatInt(f.ContainerID, 10) != containerID {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) != len(folders) {
		if err := s.Store.SaveFolders(s.Cfg.FoldersFile, filtered); err != nil {
			log.Printf("[HTTPAPI] reconcile category_delete %s: %v", containerID, err)
		}
	}
}
