package tenantctl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/internal/auth/jwt"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const minPasswordLength = 8

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) createClinicCmd() *cobra.Command {
	var name, slug string
	cmd := &cobra.Command{
		Use:   "create-clinic",
		Short: "Register a clinic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &repository.Clinic{Name: name, Slug: slug, IsActive: true}
			if err := httputil.Validate(c); err != nil {
				return err
			}
			if err := repository.NewClinicRepository(a.db).Create(cmd.Context(), c); err != nil {
				return err
			}
			a.log.Info().Str("clinic_id", c.ID).Str("slug", c.Slug).Msg("clinic created")
			return a.printJSON(c)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Clinic name")
	cmd.Flags().StringVar(&slug, "slug", "", "Unique URL slug")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("slug")
	return cmd
}

func (a *app) createUserCmd() *cobra.Command {
	var (
		clinicID      string
		email         string
		firstName     string
		lastName      string
		role          string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user in a clinic",
		Long: `Creates a user whose home clinic is --clinic. The password is read from the
first line of standard input with --password-stdin, or from
DENTIAGEST_NEW_USER_PASSWORD. It is never accepted as a flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := tenant.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			if _, err := uuid.Parse(clinicID); err != nil {
				return fmt.Errorf("invalid clinic id %q", clinicID)
			}
			password, err := readPassword(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}

			u := &repository.User{
				Email:     strings.ToLower(strings.TrimSpace(email)),
				FirstName: firstName,
				LastName:  lastName,
				Role:      string(r),
				IsActive:  true,
			}
			if err := httputil.Validate(u); err != nil {
				return err
			}
			if err := u.SetPassword(password); err != nil {
				return err
			}

			// The new user's own scope pins the row to the requested clinic.
			scope := tenant.Single(a.appliedBy, r, clinicID)
			if err := repository.New(a.db, nil).Users.Insert(cmd.Context(), scope, u); err != nil {
				return err
			}
			a.log.Info().Str("user_id", u.ID).Str("clinic_id", u.ClinicID).Str("role", u.Role).Msg("user created")
			return a.printJSON(u)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&clinicID, "clinic", "", "Home clinic id")
	flags.StringVar(&email, "email", "", "Login email")
	flags.StringVar(&firstName, "first-name", "", "First name")
	flags.StringVar(&lastName, "last-name", "", "Last name")
	flags.StringVar(&role, "role", string(tenant.RoleDentist), "Role (owner, admin, dentist, hygienist, receptionist, assistant, patient)")
	flags.BoolVar(&passwordStdin, "password-stdin", false, "Read the password from standard input")
	for _, f := range []string{"clinic", "email", "first-name", "last-name"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	var password string
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else {
		password = os.Getenv("DENTIAGEST_NEW_USER_PASSWORD")
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

func (a *app) grantOwnerCmd() *cobra.Command {
	var ownerID, clinicID string
	cmd := &cobra.Command{
		Use:   "grant-owner",
		Short: "Give an owner access to another clinic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range []string{ownerID, clinicID} {
				if _, err := uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid id %q", id)
				}
			}
			clinics := repository.NewClinicRepository(a.db)
			if err := clinics.GrantOwner(cmd.Context(), ownerID, clinicID); err != nil {
				return err
			}
			grants, err := clinics.Grants(cmd.Context(), ownerID)
			if err != nil {
				return err
			}
			a.log.Info().Str("owner_id", ownerID).Str("clinic_id", clinicID).Int("clinics", len(grants)).Msg("clinic granted")
			return a.printJSON(grants)
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner user id")
	cmd.Flags().StringVar(&clinicID, "clinic", "", "Clinic id")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("clinic")
	return cmd
}

func (a *app) issueTokenCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue an access token for an active user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWT.Secret == "" {
				return errors.New("DENTIAGEST_JWT_SECRET must be set to issue tokens")
			}
			u, err := repository.NewUserDirectory(a.db).GetByEmail(cmd.Context(), strings.ToLower(email))
			if err != nil {
				return err
			}
			role, ok := tenant.ParseRole(u.Role)
			if !ok {
				return fmt.Errorf("user %s has unknown role %q", u.ID, u.Role)
			}
			token, err := jwt.NewManager(&a.cfg.JWT).Generate(jwt.UserInfo{
				ID:       u.ID,
				Email:    u.Email,
				Role:     role,
				ClinicID: u.ClinicID,
			})
			if err != nil {
				return err
			}
			return a.printJSON(token)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email of the user")
	cmd.MarkFlagRequired("email")
	return cmd
}
