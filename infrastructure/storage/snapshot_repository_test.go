package storage

import (
	"bot-bridge/domain"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Snapshot_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	path := filepath.Join(t.TempDir(), "nested", "messages.json")

	// Given a snapshot with a reacted message
	repository, err := NewSnapshotRepository(path, 10, log)
	req.NoError(err)
	message := testMessage(1, "luna", "hello")
	message.Reactions.Add("👍", "bobo")
	req.NoError(repository.StoreMessage(message))
	req.NoError(repository.StoreMessage(testMessage(2, "bobo", "hi")))

	// When the file is opened again
	reopened, err := NewSnapshotRepository(path, 10, log)
	req.NoError(err)
	messages, err := reopened.LoadMessages()

	// Then the whole collection is back and no temp file is left behind
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal([]string{"bobo"}, messages[0].Reactions.Members("👍"))
	_, err = os.Stat(path + ".tmp")
	req.True(os.IsNotExist(err))
}

func Test_Snapshot_Is_Capped_At_Retention(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository, err := NewSnapshotRepository(filepath.Join(t.TempDir(), "messages.json"), 2, log)
	req.NoError(err)

	for id := domain.MessageID(1); id <= 4; id++ {
		req.NoError(repository.StoreMessage(testMessage(id, "luna", "m")))
	}
	req.NoError(repository.DeleteMessage(3))

	messages, err := repository.LoadMessages()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(domain.MessageID(4), messages[0].ID)
}

func Test_Snapshot_Rejects_Corrupted_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")
	req.NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewSnapshotRepository(path, 10, logs.GetLoggerFromLevel(slog.LevelDebug))

	req.Error(err)
}
