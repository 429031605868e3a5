//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../../mocks/mock_search_index.go -package=mocks
package search

import (
	"bot-bridge/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	fieldText = "text"
	fieldFrom = "from"
	fieldID   = "_id"
	fieldSeq  = "seq"
)

type ISearchIndex interface {
	IndexMessage(message domain.Message) error
	DeleteMessage(id domain.MessageID) error
	// Search returns the ids of matching messages, newest first.
	Search(ctx context.Context, query string, limit int) ([]domain.MessageID, error)
	Close() error
}

// Index is a full-text index over message text backed by bluge.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Open opens the index at path; an empty path keeps it in memory.
func Open(path string, log *slog.Logger) (*Index, error) {
	config := bluge.InMemoryOnlyConfig()
	if path != "" {
		config = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) IndexMessage(message domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatInt(int64(message.ID), 10))
	doc.AddField(bluge.NewTextField(fieldText, message.Text))
	doc.AddField(bluge.NewKeywordField(fieldFrom, message.SenderKey).StoreValue())
	doc.AddField(bluge.NewNumericField(fieldSeq, float64(message.ID)).Sortable())
	return i.writer.Update(doc.ID(), doc)
}

func (i *Index) DeleteMessage(id domain.MessageID) error {
	return i.writer.Delete(bluge.NewDocument(strconv.FormatInt(int64(id), 10)).ID())
}

// Search matches query against the text field. A "from:key" term restricts
// the sender.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.MessageID, error) {
	if limit <= 0 {
		limit = 20
	}
	q := buildQuery(query)
	if q == nil {
		return []domain.MessageID{}, nil
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	request := bluge.NewTopNSearch(limit, q).SortBy([]string{"-" + fieldSeq})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.MessageID, 0, limit)
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != fieldID {
				return true
			}
			if id, convErr := strconv.ParseInt(string(value), 10, 64); convErr == nil {
				ids = append(ids, domain.MessageID(id))
			}
			return false
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func buildQuery(raw string) bluge.Query {
	var text []string
	q := bluge.NewBooleanQuery()
	clauses := 0
	for _, term := range strings.Fields(raw) {
		if from, ok := strings.CutPrefix(term, "from:"); ok && from != "" {
			q.AddMust(bluge.NewTermQuery(domain.NormalizeKey(from)).SetField(fieldFrom))
			clauses++
			continue
		}
		text = append(text, term)
	}
	if len(text) > 0 {
		q.AddMust(bluge.NewMatchQuery(strings.Join(text, " ")).SetField(fieldText))
		clauses++
	}
	if clauses == 0 {
		return nil
	}
	return q
}

func (i *Index) Close() error {
	i.log.Info("Closing Bluge...")
	return i.writer.Close()
}
