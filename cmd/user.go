package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/app"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/anoixa/image-predict/utils"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
	"github.com/spf13/cobra"
)

// userCmd 用户管理
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user account",
	Long: `Create a user account. A random password is generated and printed
when --password is omitted.

Examples:
  image-predict user create alice --email alice@example.com
  image-predict user create root --admin --password 'a-long-passphrase'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")

		repo, closeDB := openAccounts()
		defer closeDB()
		if err := createUser(repo, args[0], email, password, admin); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "set-role <username> <admin|user>",
	Short: "Change the role of a user",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		role := strings.ToLower(args[1])
		if role != models.RoleAdmin && role != models.RoleUser {
			log.Fatalf("Invalid role %q (must be admin or user)", args[1])
		}

		repo, closeDB := openAccounts()
		defer closeDB()
		user, err := repo.GetUserByUsername(args[0])
		if err != nil {
			log.Fatalf("Failed to find user: %v", err)
		}
		if err := repo.SetRole(user.ID, role); err != nil {
			log.Fatalf("Failed to update role: %v", err)
		}
		fmt.Printf("User %s is now %s\n", user.Username, role)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userRoleCmd)

	userCreateCmd.Flags().String("email", "", "Email address")
	userCreateCmd.Flags().String("password", "", "Password (random when empty)")
	userCreateCmd.Flags().Bool("admin", false, "Grant the admin role")
}

// openAccounts 只初始化数据库
func openAccounts() (*accounts.Repository, func()) {
	config.InitConfig()

	container := app.NewContainer(config.Get())
	if err := container.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := container.GetDatabaseFactory().AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return container.AccountsRepo, func() { _ = container.Close() }
}

func createUser(repo *accounts.Repository, username, email, password string, admin bool) error {
	username = strings.TrimSpace(username)
	if err := auth.ValidateUsername(username); err != nil {
		return err
	}

	exists, err := repo.UserExists(username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("username %q already exists", username)
	}

	generated := password == ""
	if generated {
		if password, err = utils.GenerateRandomToken(16); err != nil {
			return err
		}
	} else if err := auth.ValidatePassword(password, username, email); err != nil {
		return err
	}

	hashed, err := cryptopackage.GenerateFromPassword(password)
	if err != nil {
		return err
	}

	role := models.RoleUser
	if admin {
		role = models.RoleAdmin
	}

	if err := repo.CreateUser(&models.User{
		Username: username,
		Email:    strings.TrimSpace(email),
		Password: hashed,
		Role:     role,
		IsActive: true,
	}); err != nil {
		return err
	}

	fmt.Printf("Created %s user %s\n", role, username)
	if generated {
		fmt.Printf("Generated password: %s\n", password)
	}
	return nil
}
