package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := configFrom(cmd)
		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := store.ApplyMigrationsFS(cmd.Context(), db, os.DirFS(cfg.MigrationsDir))
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		}
		for _, version := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", version)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations that have not been applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := configFrom(cmd)
		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		pending, err := store.PendingMigrations(cmd.Context(), db, os.DirFS(cfg.MigrationsDir))
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
			return nil
		}
		for _, version := range pending {
			fmt.Fprintln(cmd.OutOrStdout(), "pending", version)
		}
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Creates an active admin account. Use it once after the first migration
so someone can sign in to the admin area.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := configFrom(cmd)
		emailAddr, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		if strings.TrimSpace(password) == "" {
			password = os.Getenv("PORTAL_ADMIN_PASSWORD")
		}
		if strings.TrimSpace(password) == "" {
			return errMissingPassword()
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		accounts := authpw.NewService(store.NewPostgresStore(db))
		user, err := accounts.CreateUser(cmd.Context(), authpw.CreateUserRequest{
			Email:       emailAddr,
			Password:    password,
			DisplayName: name,
			Role:        string(rbac.RoleAdmin),
		})
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email}).Info("admin created")
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), configFrom(cmd))
		if err != nil {
			return err
		}
		defer rt.Close()

		counts, err := rt.service.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		for kind, n := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", kind, n)
		}
		return nil
	},
}
