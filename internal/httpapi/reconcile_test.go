package httpapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

func TestReconcileChannelDeletedPrunesMatchingRecords(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{
		{ID: 1, ChannelID: "111"},
		{ID: 2, ChannelID: "222"},
	}))

	s.reconcileChannelDeleted("111")

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	require.Len(t, records, 1)
	require.Equal(t, int64(2), records[0].ID)
}

func TestReconcileChannelDeletedNoMatchIsNoop(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{{ID: 1, ChannelID: "111"}}))

	s.reconcileChannelDeleted("does-not-exist")

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	require.Len(t, records, 1)
}

func TestReconcileCategoryDeletedPrunesMatchingFolder(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveFolders(s.Cfg.FoldersFile, []state.Folder{
		{ID: 1, ContainerID: 100},
		{ID: 2, ContainerID: 200},
	}))

	s.reconcileCategoryDeleted("100")

	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	require.Len(t, folders, 1)
	require.Equal(t, int64(2), folders[0].ID)
}
