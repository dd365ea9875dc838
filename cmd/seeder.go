package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed roles, permissions, users, branches and pickup addresses for development, and print a bearer token per user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		db, _, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		s := seeder{db: db, cost: cfg.Security.BCryptCost}
		if err := s.run(cmd.Context()); err != nil {
			return err
		}

		tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret)
		for _, u := range seedUsers {
			id, err := s.id(cmd.Context(), "SELECT id FROM users WHERE email = $1", u.Email)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateAccessToken(id, u.Email)
			if err != nil {
				return err
			}
			fmt.Printf("%-22s %s\n", u.Email, token)
		}
		return nil
	},
}

var seedPermissions = []struct {
	Name string
	Desc string
}{
	{auth.PermShipmentsCreate, "Book shipments"},
	{auth.PermShipmentsRead, "Read own shipments"},
	{auth.PermDeliveryRead, "List parcels to deliver or scan"},
	{auth.PermDeliveryUpdate, "Move parcels through delivery"},
}

var seedRoles = map[string][]string{
	user.SuperAdminRole: {auth.PermShipmentsCreate, auth.PermShipmentsRead, auth.PermDeliveryRead, auth.PermDeliveryUpdate},
	"Customer":          {auth.PermShipmentsCreate, auth.PermShipmentsRead},
	"Courier":           {auth.PermDeliveryRead, auth.PermDeliveryUpdate},
	"Branch Staff":      {auth.PermDeliveryRead, auth.PermDeliveryUpdate},
}

var seedBranches = []struct {
	Name    string
	Address string
	Phone   string
}{
	{"Jakarta Hub", "Jl. Gatot Subroto No. 1, Jakarta Selatan", "0215550101"},
	{"Bandung Hub", "Jl. Asia Afrika No. 8, Bandung", "0225550102"},
}

var seedUsers = []struct {
	Email  string
	Name   string
	Phone  string
	Role   string
	Branch string
}{
	{"admin@courier.test", "Admin", "081200000001", user.SuperAdminRole, ""},
	{"customer@courier.test", "Customer", "081200000002", "Customer", ""},
	{"courier@courier.test", "Courier", "081200000003", "Courier", "Jakarta Hub"},
	{"jakarta@courier.test", "Jakarta Staff", "081200000004", "Branch Staff", "Jakarta Hub"},
	{"bandung@courier.test", "Bandung Staff", "081200000005", "Branch Staff", "Bandung Hub"},
}

type seeder struct {
	db   *sqlx.DB
	cost int
}

func (s seeder) run(ctx context.Context) error {
	log := logger.LoggerWrapper()

	if clearData {
		if _, err := s.db.ExecContext(ctx, `TRUNCATE shipment_branch_logs, shipment_histories, payments,
			shipment_details, shipments, employee_branches, branches, user_addresses, users,
			role_permissions, roles, permissions RESTART IDENTITY CASCADE`); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
		log.Info("cleared existing data")
	}

	for _, p := range seedPermissions {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO permissions (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
			p.Name, p.Desc); err != nil {
			return fmt.Errorf("failed to insert permission %s: %w", p.Name, err)
		}
	}

	for role, perms := range seedRoles {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", role); err != nil {
			return fmt.Errorf("failed to insert role %s: %w", role, err)
		}
		query, args, err := sqlx.In(`INSERT INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = ? AND p.name IN (?)
			ON CONFLICT DO NOTHING`, role, perms)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to grant permissions to %s: %w", role, err)
		}
	}

	for _, b := range seedBranches {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO branches (name, address, phone_number)
			SELECT $1, $2, $3 WHERE NOT EXISTS (SELECT 1 FROM branches WHERE name = $1)`,
			b.Name, b.Address, b.Phone); err != nil {
			return fmt.Errorf("failed to insert branch %s: %w", b.Name, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), s.cost)
	if err != nil {
		return err
	}

	for _, u := range seedUsers {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO users (email, name, phone_number, password_hash, role_id)
			SELECT $1, $2, $3, $4, id FROM roles WHERE name = $5
			ON CONFLICT (email) DO NOTHING`,
			u.Email, u.Name, u.Phone, string(hash), u.Role); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
		}

		if u.Branch == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO employee_branches (user_id, branch_id)
			SELECT u.id, b.id FROM users u, branches b WHERE u.email = $1 AND b.name = $2
			ON CONFLICT (user_id) DO NOTHING`, u.Email, u.Branch); err != nil {
			return fmt.Errorf("failed to assign %s to %s: %w", u.Email, u.Branch, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO user_addresses (user_id, label, address, latitude, longitude)
		SELECT id, 'Home', 'Jl. Sudirman No. 5, Jakarta Pusat', -6.2088, 106.8456 FROM users u
		WHERE email = $1 AND NOT EXISTS (SELECT 1 FROM user_addresses a WHERE a.user_id = u.id)`,
		"customer@courier.test"); err != nil {
		return fmt.Errorf("failed to insert address: %w", err)
	}

	log.Info("seed complete",
		"permissions", len(seedPermissions),
		"roles", len(seedRoles),
		"branches", len(seedBranches),
		"users", len(seedUsers))
	return nil
}

func (s seeder) id(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("lookup failed: %w", err)
	}
	return id, nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
