package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"partyquest/internal/app"
	"partyquest/internal/config"
	"partyquest/internal/logging"
	"partyquest/internal/model"
	"partyquest/internal/service"
	"strings"
	"time"
)

var templates = []model.EnemyTemplate{
	{Slug: "goblin", Name: "Goblin", BaseHP: 30, BaseAttack: 4, Image: "/enemies/goblin.png"},
	{Slug: "skeleton", Name: "Skeleton", BaseHP: 45, BaseAttack: 6, Image: "/enemies/skeleton.png"},
	{Slug: "slime", Name: "Slime", BaseHP: 20, BaseAttack: 2, Image: "/enemies/slime.png"},
	{Slug: "dragon", Name: "Dragon", BaseHP: 150, BaseAttack: 15, Image: "/enemies/dragon.png"},
}

func main() {
	demo := flag.Bool("demo", false, "also create a Waiting session with demo players")
	users := flag.String("users", "alice,bob", "comma separated demo user ids, the first is the host")
	maxHP := flag.Int("hp", 20, "starting health of demo players")
	flag.Parse()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open stores", "error", err)
	}
	defer a.Close(context.Background())

	for i := range templates {
		t := templates[i]
		if err := a.Enemies.Upsert(ctx, &t); err != nil {
			logger.Fatalw("failed to upsert enemy", "slug", t.Slug, "error", err)
		}
		logger.Infow("enemy seeded", "slug", t.Slug, "enemyId", t.ID)
	}

	if !*demo {
		return
	}

	ids := strings.Split(*users, ",")
	roomSvc := service.NewRoomService(a.Sessions, a.Players, a.RoomState, logger, cfg.JoinTimeout, cfg.ReadySettleDelay)
	session, err := roomSvc.Create(ctx, ids[0], *maxHP)
	if err != nil {
		logger.Fatalw("failed to create demo session", "error", err)
	}
	for _, uid := range ids[1:] {
		if err := roomSvc.AddPlayer(ctx, session.ID, uid, *maxHP); err != nil {
			logger.Fatalw("failed to add demo player", "userId", uid, "error", err)
		}
	}

	fmt.Printf("session %s (code %s)\n", session.ID, session.Code)
	auth := service.NewAuthService(cfg.JWTSecret)
	if !auth.Enabled() {
		return
	}
	for _, uid := range ids {
		token, err := auth.IssuePlayerToken(uid, 24*time.Hour)
		if err != nil {
			logger.Fatalw("failed to issue token", "userId", uid, "error", err)
		}
		fmt.Printf("%s\t%s\n", uid, token)
	}
}
