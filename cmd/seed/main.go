package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"activity-engine/internal/config"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/infra/api"
	pg "activity-engine/internal/infra/db/postgres"
	"activity-engine/internal/usecase"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	cfg.Database.MaxConns = 4
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	nop := zerolog.Nop()
	userUC := usecase.NewUserUseCase(pg.NewPostgresUserRepo(pool), pg.NewTxManager(pool), &nop)
	tokens := api.NewAuthManager(cfg.Auth)

	now := time.Now()
	monthEnd := now.AddDate(0, 1, 0)
	expired := now.AddDate(0, 0, -1)

	// one user per entitlement state
	seed := []struct {
		Name    string
		Email   string
		Plan    model.PlanType
		Credits int
		Trial   bool
		End     *time.Time
	}{
		{"Free Trial", "trial@example.com", model.PlanNone, 0, false, nil},
		{"Single Pack", "single@example.com", model.PlanSingle, 3, true, nil},
		{"Monthly", "monthly@example.com", model.PlanMonthly, 0, true, &monthEnd},
		{"Expired", "expired@example.com", model.PlanYearly, 0, true, &expired},
		{"No Plan", "none@example.com", model.PlanNone, 0, true, nil},
	}

	for _, s := range seed {
		// stable ids so re-running returns the same users and tokens stay valid
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("activity-engine:"+s.Email)).String()
		u, err := model.NewUser(id, s.Name, s.Email)
		if err != nil {
			log.Fatalf("build user %q: %v", s.Email, err)
		}
		u.PlanType = s.Plan
		u.RemainingActivityCount = s.Credits
		u.HasUsedFreeTrial = s.Trial
		if s.End != nil {
			start := now
			u.PlanStartDate = &start
			u.PlanEndDate = s.End
		}

		stored, err := userUC.Register(ctx, u)
		if err != nil {
			log.Fatalf("register %q: %v", s.Email, err)
		}
		tok, err := tokens.Mint(stored.ID)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("%-12s id=%s plan=%s credits=%d trial_used=%t\n  token=%s\n",
			stored.Name, stored.ID, stored.PlanType, stored.RemainingActivityCount, stored.HasUsedFreeTrial, tok)
	}

	fmt.Println("Seeding complete.")
}
