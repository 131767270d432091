package repositories

import (
	"collab-live/domain"
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
)

// MessageIndex keeps a full-text index of project messages next to badger.
// Badger stays the system of record; the index only returns message ids.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField("project", message.ProjectID).StoreValue()).
		AddField(bluge.NewKeywordField("sender", string(message.SenderID)).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content))
	if message.Lang != "" {
		doc.AddField(bluge.NewKeywordField("lang", message.Lang).StoreValue())
	}
	return i.writer.Update(doc.ID(), doc)
}

// Remove drops the given messages from the index in one batch.
func (i *MessageIndex) Remove(messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, id := range messageIDs {
		batch.Delete(bluge.Identifier(id))
	}
	if err := i.writer.Batch(batch); err != nil {
		return err
	}
	i.log.Debug("Messages removed from index", "count", len(messageIDs))
	return nil
}

// Search returns the ids of the best matching messages of one project.
func (i *MessageIndex) Search(projectID, query string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(projectID).SetField("project")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	dmi, err := reader.Search(context.Background(), bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := dmi.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Messages searched", "project_id", projectID, "hits", len(ids))
	return ids, nil
}
