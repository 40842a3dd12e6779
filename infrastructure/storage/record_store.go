package storage

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	_ contract.Backend    = (*RecordStore)(nil)
	_ contract.Membership = (*RecordStore)(nil)
)

// errStopScan ends a scan early once the remaining records are out of range.
var errStopScan = errors.New("stop scan")

// RecordStore is the record backend kept in BadgerDB.
//
// Keys:
//
//	msg:{conversation}:{created_at_unix_nano_padded}:{id}
//	presence:{conversation}:{participant}
//	profile:{participant}
//	member:{participant}:{conversation}
//
// The 19-digit zero padding keeps messages sorted by creation time under a prefix scan.
// Writes are serialized so that the feed sees them in commit order.
type RecordStore struct {
	db          *badger.DB
	log         *slog.Logger
	feed        *Feed
	now         func() time.Time
	mu          sync.Mutex
	lastCreated map[domain.ConversationID]time.Time
}

func NewRecordStore(db *badger.DB, log *slog.Logger, feed *Feed) *RecordStore {
	return &RecordStore{
		db:          db,
		log:         log,
		feed:        feed,
		now:         time.Now,
		lastCreated: make(map[domain.ConversationID]time.Time),
	}
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

func messagePrefix(conversationID domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func presenceKey(conversationID domain.ConversationID, participantID domain.ParticipantID) []byte {
	return []byte(fmt.Sprintf("presence:%s:%s", conversationID, participantID))
}

func profileKey(participantID domain.ParticipantID) []byte {
	return []byte(fmt.Sprintf("profile:%s", participantID))
}

func memberPrefix(participantID domain.ParticipantID) string {
	return fmt.Sprintf("member:%s:", participantID)
}

// CreateMessage stores a new message and publishes its INSERT.
// Creation times strictly increase within a conversation.
func (r *RecordStore) CreateMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.ParticipantID, text string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	message := domain.Message{
		ID:             domain.MessageID(uuid.NewString()),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
	}
	if err := domain.ValidateMessage(message); err != nil {
		return domain.Message{}, err
	}

	var sender *domain.Profile
	err := r.db.Update(func(txn *badger.Txn) error {
		last, err := r.latestCreatedAt(txn, conversationID)
		if err != nil {
			return err
		}
		message.CreatedAt = r.now().UTC()
		if !message.CreatedAt.After(last) {
			message.CreatedAt = last.Add(time.Nanosecond)
		}
		if sender, err = getProfile(txn, senderID); err != nil {
			return err
		}
		return setRecord(txn, messageKey(message), message, encodeStoredMessage)
	})
	if err != nil {
		return domain.Message{}, err
	}
	r.lastCreated[conversationID] = message.CreatedAt

	message.Sender = sender
	r.publishMessage(message, event.Insert)
	return message, nil
}

// latestCreatedAt seeks the newest message key of the conversation.
func (r *RecordStore) latestCreatedAt(txn *badger.Txn, conversationID domain.ConversationID) (time.Time, error) {
	if last, ok := r.lastCreated[conversationID]; ok {
		return last, nil
	}
	prefix := messagePrefix(conversationID)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	it.Seek(append(append([]byte{}, prefix...), []byte("9999999999999999999")...))
	if !it.ValidForPrefix(prefix) {
		return time.Time{}, nil
	}
	rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
	timestamp, _, _ := strings.Cut(rest, ":")
	nanos, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed message key %q: %w", it.Item().Key(), err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// LoadMessages returns the conversation history in creation order,
// each message joined with its sender profile when one is stored.
func (r *RecordStore) LoadMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		profiles := make(map[domain.ParticipantID]*domain.Profile)
		return scanMessages(ctx, txn, conversationID, func(m domain.Message) error {
			sender, ok := profiles[m.SenderID]
			if !ok {
				var err error
				if sender, err = getProfile(txn, m.SenderID); err != nil {
					return err
				}
				profiles[m.SenderID] = sender
			}
			m.Sender = sender
			messages = append(messages, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkMessagesRead flips, in a single transaction, every unread message not sent by
// excludeSenderID and created at or before upTo. Later messages stay unread.
func (r *RecordStore) MarkMessagesRead(ctx context.Context, conversationID domain.ConversationID, excludeSenderID domain.ParticipantID, upTo time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		flipped = nil
		var pending []domain.Message
		err := scanMessages(ctx, txn, conversationID, func(m domain.Message) error {
			if m.CreatedAt.After(upTo) {
				return errStopScan
			}
			if !m.Read && !m.IsFrom(excludeSenderID) {
				m.Read = true
				pending = append(pending, m)
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopScan) {
			return err
		}
		for _, m := range pending {
			if err := setRecord(txn, messageKey(m), m, encodeStoredMessage); err != nil {
				return err
			}
		}
		flipped = pending
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, m := range flipped {
		r.publishMessage(m, event.Update)
	}
	if len(flipped) > 0 {
		r.log.Debug("Messages marked read", "conversation", conversationID, "count", len(flipped))
	}
	return len(flipped), nil
}

// UpsertPresence writes the (conversation, participant) record and publishes INSERT or UPDATE.
func (r *RecordStore) UpsertPresence(ctx context.Context, conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	presence := domain.Presence{
		ConversationID: conversationID,
		ParticipantID:  participantID,
		Typing:         typing,
		UpdatedAt:      r.now().UTC(),
	}
	if err := domain.ValidatePresence(presence); err != nil {
		return err
	}
	change := event.Insert
	err := r.db.Update(func(txn *badger.Txn) error {
		key := presenceKey(conversationID, participantID)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			change = event.Update
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return setRecord(txn, key, presence, event.EncodePresence)
	})
	if err != nil {
		return err
	}

	row, err := event.EncodePresence(presence)
	if err != nil {
		return err
	}
	r.feed.publish(conversationID, event.RawChange{Table: event.PresenceTable, Type: change, New: row})
	return nil
}

func (r *RecordStore) CountUnread(ctx context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return scanMessages(ctx, txn, conversationID, func(m domain.Message) error {
			if !m.Read && !m.IsFrom(viewerID) {
				count++
			}
			return nil
		})
	})
	return count, err
}

// Presence returns the stored presence records of a conversation.
func (r *RecordStore) Presence(ctx context.Context, conversationID domain.ConversationID) ([]domain.Presence, error) {
	var res []domain.Presence
	err := r.db.View(func(txn *badger.Txn) error {
		return scan(ctx, txn, []byte(fmt.Sprintf("presence:%s:", conversationID)), func(row *structpb.Struct) error {
			p, err := event.DecodePresence(row)
			if err != nil {
				return err
			}
			res = append(res, p)
			return nil
		})
	})
	return res, err
}

func (r *RecordStore) Subscribe(table event.RecordType, filter contract.Filter, onEvent contract.ChangeHandler) (contract.SubscriptionID, error) {
	return r.feed.Subscribe(table, filter, onEvent)
}

func (r *RecordStore) Unsubscribe(id contract.SubscriptionID) error {
	return r.feed.Unsubscribe(id)
}

func (r *RecordStore) publishMessage(m domain.Message, change event.ChangeType) {
	row, err := event.EncodeMessage(m)
	if err != nil {
		r.log.Warn("Unable to encode message change", "message", m.ID, "error", err)
		return
	}
	r.feed.publish(m.ConversationID, event.RawChange{Table: event.MessagesTable, Type: change, New: row})
}

// SaveProfile stores a participant profile.
func (r *RecordStore) SaveProfile(profile domain.Profile) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, profileKey(profile.ID), profile, event.EncodeProfile)
	})
}

func (r *RecordStore) Profile(participantID domain.ParticipantID) (*domain.Profile, error) {
	var profile *domain.Profile
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		profile, err = getProfile(txn, participantID)
		return err
	})
	return profile, err
}

// AddMember makes participantID part of conversationID.
func (r *RecordStore) AddMember(participantID domain.ParticipantID, conversationID domain.ConversationID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(memberPrefix(participantID)+string(conversationID)), nil)
	})
}

func (r *RecordStore) ConversationIDsForUser(ctx context.Context, userID domain.ParticipantID) ([]domain.ConversationID, error) {
	var ids []domain.ConversationID
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, domain.ConversationID(strings.TrimPrefix(string(it.Item().Key()), prefix)))
		}
		return nil
	})
	return ids, err
}

// encodeStoredMessage drops the joined sender, profiles live under their own key.
func encodeStoredMessage(m domain.Message) (*structpb.Struct, error) {
	m.Sender = nil
	return event.EncodeMessage(m)
}

func setRecord[T any](txn *badger.Txn, key []byte, value T, encode func(T) (*structpb.Struct, error)) error {
	row, err := encode(value)
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(row)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func getProfile(txn *badger.Txn, participantID domain.ParticipantID) (*domain.Profile, error) {
	item, err := txn.Get(profileKey(participantID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row := &structpb.Struct{}
	if err := item.Value(func(value []byte) error {
		return proto.Unmarshal(value, row)
	}); err != nil {
		return nil, err
	}
	profile := event.DecodeProfile(row)
	return &profile, nil
}

func scanMessages(ctx context.Context, txn *badger.Txn, conversationID domain.ConversationID, fn func(domain.Message) error) error {
	return scan(ctx, txn, messagePrefix(conversationID), func(row *structpb.Struct) error {
		m, err := event.DecodeMessage(row)
		if err != nil {
			return err
		}
		return fn(m)
	})
}

// scan walks every record under prefix in key order.
func scan(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(*structpb.Struct) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := &structpb.Struct{}
		if err := it.Item().Value(func(value []byte) error {
			return proto.Unmarshal(value, row)
		}); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}
