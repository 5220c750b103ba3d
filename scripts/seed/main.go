package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/fabline/fabline/internal/app"
	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/platform/mongodb"
	"github.com/fabline/fabline/internal/users"
)

type seedUser struct {
	name     string
	company  string
	email    string
	phone    string
	role     users.Role
	password string
}

var seedUsers = []seedUser{
	{"Fabline Admin", "Fabline", "admin@fabline.local", "", users.RoleAdmin, "admin12345"},
	{"Sales Desk", "Fabline", "desk@fabline.local", "", users.RoleBackoffice, "desk12345"},
	{"Shop Supervisor", "Fabline", "floor@fabline.local", "", users.RoleSubadmin, "floor12345"},
	{"Asha Rao", "Rao Engineering", "asha@customer.local", "+919800000001", users.RoleCustomer, "customer123"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	fmt.Println("→ Seeding users...")
	switch cfg.StoreDriver {
	case app.StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := seedPostgres(ctx, pool); err != nil {
			log.Fatalf("seed users: %v", err)
		}
	case app.StoreMongo:
		client, database, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("connect mongo: %v", err)
		}
		defer client.Disconnect(ctx) //nolint:errcheck
		if err := seedMongo(ctx, database); err != nil {
			log.Fatalf("seed users: %v", err)
		}
	default:
		log.Fatalf("seeding needs STORE_DRIVER=postgres or mongo, got %q", cfg.StoreDriver)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func seedPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, u := range seedUsers {
		h, err := hash(u.password)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO users (id, name, company, email, phone, role, password_hash, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
			ON CONFLICT (email) DO NOTHING`,
			uuid.NewString(), u.name, u.company, u.email, u.phone, string(u.role), h)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedMongo(ctx context.Context, database *mongo.Database) error {
	coll := database.Collection(mongodb.CollectionUsers)
	for _, u := range seedUsers {
		h, err := hash(u.password)
		if err != nil {
			return err
		}
		_, err = coll.UpdateOne(ctx,
			bson.M{"email": u.email},
			bson.M{"$setOnInsert": users.User{
				ID:           uuid.NewString(),
				Name:         u.name,
				Company:      u.company,
				Email:        u.email,
				Phone:        u.phone,
				Role:         u.role,
				PasswordHash: h,
				Active:       true,
				CreatedAt:    time.Now().UTC(),
			}},
			options.Update().SetUpsert(true))
		if err != nil {
			return err
		}
	}
	return nil
}
