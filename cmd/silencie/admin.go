package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/silencie/silencie/internal/db"
	"github.com/silencie/silencie/internal/services"
)

var (
	templateFile string

	userEmail    string
	userName     string
	userRole     string
	userPassword string
)

var importTemplateCmd = &cobra.Command{
	Use:   "import-template",
	Short: "Create a form template from a YAML file",
	Example: `  silencie import-template -f configs/templates/diagnostico.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(templateFile)
		if err != nil {
			return err
		}
		spec, err := services.ParseTemplateSpec(data)
		if err != nil {
			return err
		}
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		tpl, err := services.NewTemplateService(db.NewStore(gdb), log).Import(cmd.Context(), spec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "template %s created with %d sections and %d questions\n",
			tpl.ID, len(tpl.Sections), len(tpl.Questions()))
		return nil
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a member or admin profile",
	Example: `  silencie create-user --email admin@silencie.app --role admin --password 'change-me-now'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		auth := services.NewAuthService(db.NewStore(gdb), nil, cfg.TokenTTL)
		p, err := auth.CreateUser(cmd.Context(), services.UserInput{
			Email:    userEmail,
			FullName: userName,
			Role:     userRole,
			Password: userPassword,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) created as %s\n", p.ID, p.Email, p.Role)
		return nil
	},
}

// redact hides the password of a database URL before it is logged.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func init() {
	importTemplateCmd.Flags().StringVarP(&templateFile, "file", "f", "", "YAML template file")
	_ = importTemplateCmd.MarkFlagRequired("file")

	createUserCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	createUserCmd.Flags().StringVar(&userName, "name", "", "full name")
	createUserCmd.Flags().StringVar(&userRole, "role", services.RoleMember, "admin or member")
	createUserCmd.Flags().StringVar(&userPassword, "password", "", "password (omit for token-only users)")
	_ = createUserCmd.MarkFlagRequired("email")
}
