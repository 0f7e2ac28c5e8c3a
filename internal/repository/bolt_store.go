package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/taskboard/internal/domain"
)

var (
	bucketUsers         = []byte("users")
	bucketUserEmails    = []byte("user_emails")
	bucketTickets       = []byte("tickets")
	bucketTicketHistory = []byte("ticket_history")
)

// BoltStore is the embedded Store. Records are JSON documents; bbolt allows a
// single writer at a time, so every WithinTx call is serialized against all
// other mutations.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore prepares the buckets on an open database.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUserEmails, bucketTickets, bucketTicketHistory} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &BoltStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *BoltStore) Users() UserRepository            { return &boltUsers{store: s} }
func (s *BoltStore) Tickets() TicketRepository        { return &boltTickets{store: s} }
func (s *BoltStore) History() TicketHistoryRepository { return &boltHistory{store: s} }

// WithinTx runs fn in a bbolt read-write transaction.
func (s *BoltStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(ctx, &boltTx{tx: btx, now: s.now})
	})
}

// Ping reports whether the database file is open.
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTickets) == nil {
			return fmt.Errorf("bucket %s missing", bucketTickets)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltUsers struct {
	store *BoltStore
}

func (r *boltUsers) Create(ctx context.Context, user *domain.User) error {
	return r.store.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		emailKey := []byte(strings.ToLower(user.Email))
		if emails.Get(emailKey) != nil {
			return ErrDuplicateEmail
		}
		now := r.store.now()
		user.Version = 1
		user.CreatedAt = now
		user.UpdatedAt = now
		normalizeUser(user)
		if err := putJSON(tx.Bucket(bucketUsers), user.ID, user); err != nil {
			return err
		}
		return emails.Put(emailKey, []byte(user.ID))
	})
}

func (r *boltUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := r.store.db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

func (r *boltUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := r.store.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(strings.ToLower(email)))
		if id == nil {
			return ErrNotFound
		}
		var err error
		user, err = getUser(tx, string(id))
		return err
	})
	return user, err
}

func (r *boltUsers) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	users := []domain.User{}
	err := r.store.db.View(func(tx *bolt.Tx) error {
		for _, id := range sortedUnique(ids) {
			user, err := getUser(tx, id)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			users = append(users, *user)
		}
		return nil
	})
	sortUsers(users)
	return users, err
}

func (r *boltUsers) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := r.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var user domain.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			normalizeUser(&user)
			users = append(users, user)
			return nil
		})
	})
	sortUsers(users)
	return users, err
}

type boltTickets struct {
	store *BoltStore
}

func (r *boltTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.store.db.View(func(tx *bolt.Tx) error {
		var err error
		ticket, err = getTicket(tx, id)
		return err
	})
	return ticket, err
}

func (r *boltTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	tickets := []domain.Ticket{}
	err := r.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTickets).ForEach(func(_, v []byte) error {
			var ticket domain.Ticket
			if err := json.Unmarshal(v, &ticket); err != nil {
				return err
			}
			normalizeTicket(&ticket)
			if filter.Matches(&ticket) {
				tickets = append(tickets, ticket)
			}
			return nil
		})
	})
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, err
}

type boltHistory struct {
	store *BoltStore
}

func (r *boltHistory) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	entries := []domain.TicketHistory{}
	prefix := []byte(ticketID + "/")
	err := r.store.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTicketHistory).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var entry domain.TicketHistory
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

type boltTx struct {
	tx  *bolt.Tx
	now func() time.Time
}

func (t *boltTx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	bucket := t.tx.Bucket(bucketTickets)
	if bucket.Get([]byte(ticket.ID)) != nil {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	now := t.now()
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	normalizeTicket(ticket)
	return putJSON(bucket, ticket.ID, ticket)
}

func (t *boltTx) LockTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return getTicket(t.tx, id)
}

func (t *boltTx) SaveTicket(ctx context.Context, ticket *domain.Ticket) error {
	stored, err := getTicket(t.tx, ticket.ID)
	if err != nil {
		return err
	}
	if stored.Version != ticket.Version {
		return ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = t.now()
	return putJSON(t.tx.Bucket(bucketTickets), ticket.ID, ticket)
}

func (t *boltTx) LockUsers(ctx context.Context, ids ...string) (map[string]*domain.User, error) {
	users := make(map[string]*domain.User, len(ids))
	for _, id := range sortedUnique(ids) {
		user, err := getUser(t.tx, id)
		if err != nil {
			if err == ErrNotFound {
				return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
			}
			return nil, err
		}
		users[id] = user
	}
	return users, nil
}

func (t *boltTx) SaveUser(ctx context.Context, user *domain.User) error {
	stored, err := getUser(t.tx, user.ID)
	if err != nil {
		return err
	}
	if stored.Version != user.Version {
		return ErrVersionConflict
	}
	// Credentials and email belong to the identity record, not to the engines.
	user.Email = stored.Email
	user.PasswordHash = stored.PasswordHash
	user.Version++
	user.UpdatedAt = t.now()
	return putJSON(t.tx.Bucket(bucketUsers), user.ID, user)
}

func (t *boltTx) AppendHistory(ctx context.Context, entry *domain.TicketHistory) error {
	entry.CreatedAt = t.now()
	key := fmt.Sprintf("%s/%020d/%s", entry.TicketID, entry.CreatedAt.UnixNano(), entry.ID)
	return putJSON(t.tx.Bucket(bucketTicketHistory), key, entry)
}

func getUser(tx *bolt.Tx, id string) (*domain.User, error) {
	raw := tx.Bucket(bucketUsers).Get([]byte(id))
	if raw == nil {
		return nil, ErrNotFound
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	normalizeUser(&user)
	return &user, nil
}

func getTicket(tx *bolt.Tx, id string) (*domain.Ticket, error) {
	raw := tx.Bucket(bucketTickets).Get([]byte(id))
	if raw == nil {
		return nil, ErrNotFound
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, err
	}
	normalizeTicket(&ticket)
	return &ticket, nil
}

func putJSON(bucket *bolt.Bucket, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), payload)
}

// normalizeUser replaces nil lists so both stores return the same shape.
func normalizeUser(user *domain.User) {
	if user.TasksTaken == nil {
		user.TasksTaken = []string{}
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.FriendRequestsSent == nil {
		user.FriendRequestsSent = []string{}
	}
	if user.FriendRequestsReceived == nil {
		user.FriendRequestsReceived = []string{}
	}
}

func normalizeTicket(ticket *domain.Ticket) {
	if ticket.Claimants == nil {
		ticket.Claimants = []string{}
	}
}

func sortUsers(users []domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})
}
