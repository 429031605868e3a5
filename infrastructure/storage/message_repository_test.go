package storage

import (
	"bot-bridge/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	return db
}

func testMessage(id domain.MessageID, sender, text string) domain.Message {
	return domain.Message{
		ID:        id,
		SenderKey: sender,
		Text:      text,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, int(id), 0, time.UTC),
		Reactions: make(domain.Reactions),
	}
}

func Test_Store_And_Load_Messages_In_Id_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository := NewMessageRepository(openTestDB(t), log)
	defer repository.Close()

	// Given messages stored out of order, one of them with id above 9
	for _, m := range []domain.Message{
		testMessage(12, "luna", "twelve"),
		testMessage(3, "bobo", "three"),
		testMessage(7, "enfield", "seven"),
	} {
		req.NoError(repository.StoreMessage(m))
	}

	// When loading them back
	messages, err := repository.LoadMessages()
	req.NoError(err)

	// Then the padded keys give the id order
	req.Len(messages, 3)
	req.Equal(domain.MessageID(3), messages[0].ID)
	req.Equal(domain.MessageID(7), messages[1].ID)
	req.Equal(domain.MessageID(12), messages[2].ID)
	req.Equal("twelve", messages[2].Text)
}

func Test_Store_Rewrites_Reactions_And_Delete_Removes(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository := NewMessageRepository(openTestDB(t), log)
	defer repository.Close()

	message := testMessage(1, "luna", "hello")
	req.NoError(repository.StoreMessage(message))
	req.NoError(repository.StoreMessage(testMessage(2, "bobo", "hi")))

	// Given a reaction change rewriting the same key
	message.Reactions.Add("👍", "bobo")
	req.NoError(repository.StoreMessage(message))

	// When the other message is evicted
	req.NoError(repository.DeleteMessage(2))

	// Then only the rewritten message remains
	messages, err := repository.LoadMessages()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal([]string{"bobo"}, messages[0].Reactions.Members("👍"))
}

func Test_Message_Key_Round_Trip(t *testing.T) {
	req := require.New(t)

	key := MessageKey(42)
	req.Equal("msg:0000000000000000042", string(key))

	id, ok := ParseMessageKey(key)
	req.True(ok)
	req.Equal(domain.MessageID(42), id)

	_, ok = ParseMessageKey([]byte("work:1"))
	req.False(ok)
}

func Test_Open_Rejects_Unknown_Backend(t *testing.T) {
	req := require.New(t)

	_, err := Open(Options{Backend: "sqlite"}, logs.GetLoggerFromLevel(slog.LevelDebug))

	req.Error(err)
	req.Contains(err.Error(), "unknown storage backend")
}
