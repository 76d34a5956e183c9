package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/collabflow/collabflow/internal/config"
	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/notify"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/internal/services"
	"github.com/collabflow/collabflow/internal/stream"
	"github.com/collabflow/collabflow/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// 1. Ensure Tenant Exists
	domain := "localhost"
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{
			Name:   "Local Dev Tenant",
			Domain: domain,
		}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			log.Fatalf("Failed to create tenant: %v", err)
		}
	} else {
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	// 2. Ensure Demo Users Exist
	alice, err := store.EnsureUser(ctx, tenant.ID, "alice@localhost", "Alice")
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	bob, err := store.EnsureUser(ctx, tenant.ID, "bob@localhost", "Bob")
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	// 3. Check for existing workflows to prevent duplicates
	existing, err := store.ListWorkflows(ctx, tenant.ID)
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}

	existingMap := make(map[string]bool)
	for _, w := range existing {
		existingMap[w.Title] = true
	}

	notifier := notify.NewRegistry(store, cfg.Notify.MaxPending, cfg.Stream.SubscriberBuffer, logger)
	defer notifier.Shutdown()
	svc := services.NewWorkflowService(store, services.NopMediaClient{},
		stream.NewBroadcaster(cfg.Stream.SubscriberBuffer, logger), notifier, clock.RealClock{}, logger)

	// 4. Create Seed Workflows
	workflows := []struct {
		Title    string
		Messages []string
	}{
		{"Quarterly report review", []string{
			"Can you look over the Q3 draft and flag anything odd?",
			"The revenue table on page 4 does not match the summary.",
		}},
		{"Onboarding: new vendor", []string{
			"Please upload the signed MSA when you have it.",
		}},
	}

	for _, w := range workflows {
		if existingMap[w.Title] {
			logger.Info("Skipping existing workflow", "title", w.Title)
			continue
		}

		wf, err := svc.CreateWorkflow(ctx, tenant.ID, alice.ID, w.Title)
		if err != nil {
			log.Printf("Failed to create workflow %s: %v", w.Title, err)
			continue
		}
		if err := svc.JoinWorkflow(ctx, wf.ID, bob.ID, models.ParticipantRoleMember); err != nil {
			log.Printf("Failed to add participant to %s: %v", w.Title, err)
		}
		for i, content := range w.Messages {
			sender := alice.ID
			if i%2 == 1 {
				sender = bob.ID
			}
			if _, err := svc.SendMessage(ctx, wf.ID, sender, models.MessageTypeRequest, content, nil); err != nil {
				log.Printf("Failed to seed message in %s: %v", w.Title, err)
			}
		}
		logger.Info("Seeded workflow", "title", w.Title, "id", wf.ID)
	}
	logger.Info("Seeding complete!")
}
