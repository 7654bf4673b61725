// Package main implements the Attribute Authority server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/internet2/shibboleth-go-components/internal/arp"
	"github.com/internet2/shibboleth-go-components/internal/arp/persistence"
	api "github.com/internet2/shibboleth-go-components/internal/attributeauthority/api"
	"github.com/internet2/shibboleth-go-components/internal/common"
	"github.com/internet2/shibboleth-go-components/internal/resolver"
	"github.com/internet2/shibboleth-go-components/internal/resolver/provider"
)

func runServer(ctx context.Context, configPath string) error {
	log.Default().Println("Loading Attribute Authority...")
	log.Default().Println("Config Path:", configPath)

	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		log.Printf("❌ Failed to load config: %v", err)
		return err
	}

	// === Main Router ===
	r := chi.NewRouter()
	common.AddCors(r, cfg)
	common.AddHealthEndpoint(r, cfg)

	// === ARP Repository ===
	repository, err := persistence.NewRepository(cfg)
	if err != nil {
		log.Printf("❌ ARP repository setup failed: %v", err)
		return err
	}
	defer repository.Destroy()
	engine := arp.NewEngine(repository)

	// === Database for relational data connectors ===
	// Shares the Postgres settings with the postgresql ARP backend; left nil
	// when no database is reachable so a purely static resolver still works.
	var db *sql.DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
	)
	if db, err = common.InitializeDatabase(dsn, cfg.Postgres.MaxOpenConnections, cfg.Postgres.MaxIdleConnections, ""); err != nil {
		log.Printf("🗄️  Postgres unavailable, relational data connectors disabled: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	// === Attribute Resolver ===
	configData, err := os.ReadFile(cfg.Resolver.ConfigPath)
	if err != nil {
		log.Printf("❌ Reading resolver configuration failed: %v", err)
		return err
	}
	res, err := resolver.NewAttributeResolver(configData, provider.DefaultRegistry(db))
	if err != nil {
		log.Printf("❌ Resolver setup failed: %v", err)
		return err
	}
	defer res.Close()
	log.Printf("✅ Attribute resolver loaded with %d plug-ins", len(res.PlugInIDs()))

	// === API ===
	service := api.NewAttributeAuthorityService(engine, res)
	controller := api.NewAttributeAuthorityController(service)

	base := common.NormalizeBasePath(cfg.Server.ContextPath)
	apiRouter := chi.NewRouter()
	controller.RegisterRoutes(apiRouter)
	r.Mount(base, apiRouter)

	// === Start Server ===
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("▶️ Attribute Authority listening on %s (contextPath=%q)\n", addr, cfg.Server.ContextPath)

	go func() {
		if err := http.ListenAndServe(addr, r); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	return nil
}

func main() {
	ctx := context.Background()
	configPath := ""
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()
	if err := runServer(ctx, configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
