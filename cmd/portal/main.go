package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebridge/portal/internal/config"
	"github.com/carebridge/portal/internal/domain/doctor"
	"github.com/carebridge/portal/internal/domain/history"
	"github.com/carebridge/portal/internal/domain/labs"
	"github.com/carebridge/portal/internal/domain/patient"
	"github.com/carebridge/portal/internal/domain/reports"
	"github.com/carebridge/portal/internal/listview"
	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/platform/session"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// env is the wired client stack shared by the subcommands.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	sess *session.Session
	api  *rest.Client
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if !cfg.IsProduction() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	sess := session.New()
	sess.OnExpired = func() {
		fmt.Fprintln(os.Stderr, "session expired, run `portal login` again")
		_ = clearState()
	}

	if st, err := loadState(); err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable session state")
	} else if st != nil {
		sess.Establish(st.User, st.Role, st.Token)
	}

	api := rest.NewClient(rest.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.RequestTimeout,
		RateRPS:   cfg.RateRPS,
		RateBurst: cfg.RateBurst,
	}, sess, logger)

	return &env{cfg: cfg, log: logger, sess: sess, api: api}, nil
}

func (e *env) requireLogin() error {
	if !e.sess.Authenticated() {
		return fmt.Errorf("not logged in, run `portal login` first")
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "CareBridge portal client",
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(labsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")

			e, err := newEnv()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			switch session.Role(role) {
			case session.RoleDoctor:
				dc := doctor.NewClient(e.api, e.sess, e.log)
				resp, err := dc.Login(ctx, doctor.LoginRequest{Username: username, Password: password})
				if err != nil {
					return loginError(err)
				}
				fmt.Printf("Logged in as %s (doctor)\n", resp.User.Username)
				fmt.Printf("Profile status: %s, next: %s\n", resp.ProfileStatus, resp.RedirectTo)
			case session.RolePatient:
				pc := patient.NewClient(e.api, e.sess, e.log)
				resp, err := pc.Login(ctx, patient.LoginRequest{Username: username, Password: password})
				if err != nil {
					return loginError(err)
				}
				fmt.Printf("Logged in as %s (patient)\n", resp.User.Username)
			default:
				return fmt.Errorf("--role must be doctor or patient, got %q", role)
			}

			token, err := e.sess.Token()
			if err != nil {
				return err
			}
			return saveState(sessionState{Token: token, Role: e.sess.Role(), User: e.sess.User()})
		},
	}
	cmd.Flags().String("username", "", "Account username")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().String("role", "doctor", "Portal role: doctor or patient")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// loginError flattens field validation errors into a readable line.
func loginError(err error) error {
	if !rest.IsValidation(err) {
		return err
	}
	var parts []string
	for field, msgs := range rest.FieldErrors(err) {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return fmt.Errorf("login failed: %s", strings.Join(parts, ", "))
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			if e.sess.Authenticated() {
				switch e.sess.Role() {
				case session.RolePatient:
					_ = patient.NewClient(e.api, e.sess, e.log).Logout(ctx)
				default:
					_ = doctor.NewClient(e.api, e.sess, e.log).Logout(ctx)
				}
			}
			if err := clearState(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show doctor verification status",
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")

			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.requireLogin(); err != nil {
				return err
			}
			if e.sess.Role() != session.RoleDoctor {
				return fmt.Errorf("verification status is a doctor view")
			}
			ctx, cancel := signalContext()
			defer cancel()

			dc := doctor.NewClient(e.api, e.sess, e.log)
			vs, err := dc.VerificationStatus(ctx)
			if err != nil {
				return err
			}
			printVerification(vs)

			if !watch || vs.ProfileStatus.Terminal() {
				return nil
			}

			w := doctor.NewWatcher(dc, e.cfg.PollInterval, func(s doctor.VerificationStatus) {
				printVerification(&s)
			}, e.log)
			w.Start(ctx)
			select {
			case <-w.Done():
			case <-ctx.Done():
				w.Stop()
			}
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "Poll until verification reaches a final state")
	return cmd
}

func printVerification(vs *doctor.VerificationStatus) {
	fmt.Printf("Status: %s\n", vs.ProfileStatus)
	if vs.SubmittedAt != nil {
		fmt.Printf("Submitted: %s\n", vs.SubmittedAt.Format("2006-01-02 15:04"))
	}
	if vs.VerifiedAt != nil {
		fmt.Printf("Verified: %s\n", vs.VerifiedAt.Format("2006-01-02 15:04"))
	}
	if vs.RejectionReason != nil {
		fmt.Printf("Rejection reason: %s\n", *vs.RejectionReason)
	}
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Workspace medical reports",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List reports in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, _ := cmd.Flags().GetInt64("workspace")
			search, _ := cmd.Flags().GetString("search")
			category, _ := cmd.Flags().GetString("category")
			critical, _ := cmd.Flags().GetBool("critical")

			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			rc := reports.NewClient(e.api, e.cfg.UploadMaxBytes)
			model, fetch := rc.NewListModel(workspace)
			if err := model.Load(ctx, fetch); err != nil {
				return err
			}

			patch := listview.Patch{}
			if search != "" {
				patch.Search = listview.String(search)
			}
			if category != "" {
				patch.Category = listview.String(category)
			}
			if critical {
				patch.Flags = map[string]bool{"critical_only": true}
			}
			model.SetFilter(patch)

			visible := model.Visible()
			if len(visible) == 0 {
				fmt.Println("No reports match.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE\tOCR\tCRITICAL\tUPLOADED")
			for _, r := range visible {
				crit := ""
				if r.IsCritical {
					crit = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Title, r.ReportType, r.OCRStatus, crit,
					r.UploadedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().Int64("workspace", 0, "Workspace ID")
	listCmd.Flags().String("search", "", "Text search over title and description")
	listCmd.Flags().String("category", "", "Report type filter")
	listCmd.Flags().Bool("critical", false, "Only critical reports")
	_ = listCmd.MarkFlagRequired("workspace")

	cmd.AddCommand(listCmd)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Workspace patient-history summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, _ := cmd.Flags().GetInt64("workspace")
			clinical, _ := cmd.Flags().GetBool("clinical")

			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			hc := history.NewClient(e.api)
			sum, err := hc.WorkspaceSummary(ctx, workspace)
			if err != nil {
				return err
			}
			fmt.Printf("Workspace %d history\n", sum.WorkspaceID)
			fmt.Printf("Conditions: %d (%d active)\n", sum.TotalConditions, sum.ActiveConditions)
			fmt.Printf("Medications: %d (%d current)\n", sum.TotalMedications, sum.CurrentMedications)
			fmt.Printf("Allergies: %d\n", sum.TotalAllergies)
			fmt.Printf("Surgeries: %d, Visits: %d, Labs: %d\n",
				sum.TotalSurgeries, sum.TotalVisits, sum.TotalLabResults)
			if sum.HasCriticalAllergies {
				fmt.Println("CRITICAL ALLERGIES on record")
			}
			if sum.RequiresMonitoring {
				fmt.Println("Requires monitoring")
			}
			fmt.Printf("Completeness: %d%%\n", sum.CompletenessScore)

			if !clinical {
				return nil
			}

			cs, err := hc.ClinicalSummary(ctx, workspace)
			if err != nil {
				return err
			}
			fmt.Println()
			if cs.PatientName != "" {
				fmt.Printf("Patient: %s\n", cs.PatientName)
			}
			printEntries("Active conditions", cs.ActiveConditions)
			printEntries("Current medications", cs.CurrentMedications)
			printEntries("Allergies", cs.Allergies)
			printEntries("Monitoring", cs.MonitoringItems)
			if cs.AISummary != "" {
				fmt.Printf("\nAI summary:\n%s\n", cs.AISummary)
			}
			return nil
		},
	}
	cmd.Flags().Int64("workspace", 0, "Workspace ID")
	cmd.Flags().Bool("clinical", false, "Include the clinical summary lists")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func printEntries(heading string, entries []history.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("%s:\n", heading)
	for _, e := range entries {
		line := "  - " + e.Title
		if e.Severity != "" {
			line += fmt.Sprintf(" [%s]", e.Severity)
		}
		if e.IsCritical {
			line += " (critical)"
		}
		fmt.Println(line)
	}
}

func labsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labs",
		Short: "Workspace lab results grouped by test",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, _ := cmd.Flags().GetInt64("workspace")
			trendTest, _ := cmd.Flags().GetString("trend")
			abnormal, _ := cmd.Flags().GetBool("abnormal")

			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			lc := labs.NewClient(e.api)
			model, fetch := lc.NewGroupedModel(workspace)
			if err := model.Load(ctx, fetch); err != nil {
				return err
			}
			return renderLabs(ctx, os.Stdout, model, trendTest, abnormal)
		},
	}
	cmd.Flags().Int64("workspace", 0, "Workspace ID")
	cmd.Flags().String("trend", "", "Show the trend for one test name")
	cmd.Flags().Bool("abnormal", false, "Only tests with abnormal results")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// renderLabs prints the grouped lab table and, when trendTest is set,
// selects that group and prints its fetched trend.
func renderLabs(ctx context.Context, out io.Writer, model *listview.Grouped[labs.Result, *labs.Trend], trendTest string, abnormal bool) error {
	if abnormal {
		model.SetFilter(listview.Patch{Flags: map[string]bool{"abnormal_only": true}})
	}

	groups := model.Groups()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No lab results.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tLATEST\tFLAG\tCOLLECTED\tRESULTS")
	for _, g := range groups {
		latest := g.Records[0]
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%d\n",
			g.Key, latest.Value, latest.Unit, latest.Flag,
			latest.CollectedAt.Format("2006-01-02"), len(g.Records))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if trendTest == "" {
		return nil
	}
	if err := <-model.SelectGroup(ctx, trendTest); err != nil {
		return err
	}
	trend, ok, err := model.Detail()
	if err != nil {
		return err
	}
	if !ok || trend == nil {
		return fmt.Errorf("no trend for %q", trendTest)
	}
	fmt.Fprintf(out, "\n%s trend (%s): %s\n", trend.TestName, trend.Unit, trend.Direction)
	for _, p := range trend.Points {
		fmt.Fprintf(out, "  %s  %.2f\n", p.Date, p.Value)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("portal", version)
		},
	}
}
