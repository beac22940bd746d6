package seeder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/store"
)

const (
	UsersCollection  = "users"
	OrdersCollection = "orders"
)

type Config struct {
	Users      int
	Orders     int
	RandomSeed int64
	Reset      bool
}

type Result struct {
	Users         int
	Orders        int
	DeletedUsers  int64
	DeletedOrders int64
}

type Service struct {
	db  store.Database
	cfg Config
	log *slog.Logger
}

func NewService(db store.Database, cfg Config, logger *slog.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Users < 0 || cfg.Orders < 0 {
		return nil, fmt.Errorf("seed sizes must be >= 0")
	}
	if cfg.Orders > 0 && cfg.Users == 0 {
		return nil, fmt.Errorf("orders need at least one user to reference")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: db, cfg: cfg, log: logger}, nil
}

// Run writes the demo users and orders. With Reset set, both collections are
// emptied first.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var result Result
	if s.cfg.Reset {
		deleted, err := s.db.DeleteMany(ctx, UsersCollection, document.Object())
		if err != nil {
			return result, fmt.Errorf("reset %s: %w", UsersCollection, err)
		}
		result.DeletedUsers = deleted
		deleted, err = s.db.DeleteMany(ctx, OrdersCollection, document.Object())
		if err != nil {
			return result, fmt.Errorf("reset %s: %w", OrdersCollection, err)
		}
		result.DeletedOrders = deleted
	}

	generator := NewGenerator(s.cfg.RandomSeed)
	if s.cfg.Users > 0 {
		users := make([]document.Value, 0, s.cfg.Users)
		for i := 0; i < s.cfg.Users; i++ {
			users = append(users, generator.NextUser())
		}
		ids, err := s.db.InsertMany(ctx, UsersCollection, users)
		if err != nil {
			return result, fmt.Errorf("insert %s: %w", UsersCollection, err)
		}
		result.Users = len(ids)

		if s.cfg.Orders > 0 {
			orders := make([]document.Value, 0, s.cfg.Orders)
			for i := 0; i < s.cfg.Orders; i++ {
				owner := ids[i%len(ids)]
				orders = append(orders, generator.NextOrder(owner.OID()))
			}
			inserted, err := s.db.InsertMany(ctx, OrdersCollection, orders)
			if err != nil {
				return result, fmt.Errorf("insert %s: %w", OrdersCollection, err)
			}
			result.Orders = len(inserted)
		}
	}

	s.log.Info(
		"seeded demo data",
		slog.String("database", s.db.Name()),
		slog.Int("users", result.Users),
		slog.Int("orders", result.Orders),
		slog.Int64("deleted_users", result.DeletedUsers),
		slog.Int64("deleted_orders", result.DeletedOrders),
	)
	return result, nil
}
