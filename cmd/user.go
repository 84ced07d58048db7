package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gopher0727/AltMur/internal/models"
	"github.com/Gopher0727/AltMur/internal/repository"
	"github.com/Gopher0727/AltMur/pkg/utils"
)

var (
	ErrInvalidUsername = errors.New("username must be 3-50 characters of letters, digits or underscores")
	ErrInvalidPassword = errors.New("password must be 8-72 characters")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrUserExists      = errors.New("username is already taken")
)

type newUser struct {
	Username  string
	FirstName string
	Email     string
	Password  string
	Admin     bool
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, fields repository.Fields) (*models.User, error)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userInput newUser

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user with a bcrypt-hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, provider, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		opts, closeOpts, err := repositoryOptions(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer closeOpts()

		users, err := repository.NewUserRepository(provider.DB(), opts...)
		if err != nil {
			return err
		}
		user, err := createUser(cmd.Context(), users, userInput)
		if err != nil {
			return err
		}
		cmd.Printf("created user %d (%s)\n", user.ID, user.Username)
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&userInput.Username, "username", "", "login name")
	f.StringVar(&userInput.FirstName, "first-name", "", "display first name (defaults to the username)")
	f.StringVar(&userInput.Email, "email", "", "email address")
	f.StringVar(&userInput.Password, "password", "", "plain-text password")
	f.BoolVar(&userInput.Admin, "admin", false, "grant platform administrator rights")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}

func createUser(ctx context.Context, users userStore, in newUser) (*models.User, error) {
	if !utils.ValidateUsername(in.Username) {
		return nil, ErrInvalidUsername
	}
	if !utils.ValidatePassword(in.Password) {
		return nil, ErrInvalidPassword
	}
	if in.Email != "" && !utils.ValidateEmail(in.Email) {
		return nil, ErrInvalidEmail
	}

	existing, err := users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	firstName := in.FirstName
	if firstName == "" {
		firstName = in.Username
	}
	fields := repository.Fields{
		"username":        in.Username,
		"first_name":      firstName,
		"hashed_password": hashed,
		"is_admin":        in.Admin,
	}
	if in.Email != "" {
		fields["email"] = in.Email
	}
	return users.Create(ctx, fields)
}
