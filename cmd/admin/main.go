// Command admin manages account roles from the command line.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/google/uuid"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <email|user_id> [admin|author]  - Grant a staff role (default admin)")
	fmt.Println("  go run ./cmd/admin demote <email|user_id>                  - Make the user a reader")
	fmt.Println("  go run ./cmd/admin list-admins                             - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := repository.NewUserRepository(db)
	svc := service.NewUserService(users)
	ctx := context.Background()

	switch os.Args[1] {
	case "promote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		role := models.RoleAdmin
		if len(os.Args) > 3 {
			role = models.UserRole(strings.ToLower(os.Args[3]))
		}
		if !role.IsStaff() {
			log.Fatalf("promote takes admin or author, got %q", role)
		}
		setRole(ctx, users, svc, os.Args[2], role)

	case "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		setRole(ctx, users, svc, os.Args[2], models.RoleReader)

	case "list-admins":
		listAdmins(ctx, svc)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func lookup(ctx context.Context, users repository.UserRepository, ref string) *models.User {
	var (
		user *models.User
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		user, err = users.GetByID(ctx, id)
	} else {
		user, err = users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(ref)))
	}
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		log.Fatalf("Database error: %v", err)
	}
	if user == nil {
		fmt.Printf("User %s not found\n", ref)
		os.Exit(1)
	}
	return user
}

// setRole acts as a system admin, so the last-admin guard still applies.
func setRole(ctx context.Context, users repository.UserRepository, svc *service.UserService, ref string, role models.UserRole) {
	user := lookup(ctx, users, ref)
	if user.Role == role {
		fmt.Printf("%s already has role %s\n", user.Email, role)
		return
	}

	system := service.Actor{UserID: uuid.Nil, Role: models.RoleAdmin}
	if _, err := svc.SetRole(ctx, system, user.ID, role); err != nil {
		log.Fatalf("Failed to change role: %v", err)
	}
	fmt.Printf("%s (ID: %s) is now %s\n", user.Email, user.ID, role)
}

func listAdmins(ctx context.Context, svc *service.UserService) {
	page, err := svc.ListUsers(ctx, pagination.Request{PageSize: pagination.MaxPageSize}, string(models.RoleAdmin), "")
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}
	if len(page.Data) == 0 {
		fmt.Println("No admins found")
		return
	}

	fmt.Println("Current admins:")
	for _, admin := range page.Data {
		name := ""
		if admin.Username != nil {
			name = *admin.Username
		}
		fmt.Printf("ID: %s | Username: %s | Email: %s\n", admin.ID, name, admin.Email)
	}
	if page.Total > int64(len(page.Data)) {
		fmt.Printf("... and %d more\n", page.Total-int64(len(page.Data)))
	}
}
