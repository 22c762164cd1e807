package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"credentialing-backend/internal/audit"
	"credentialing-backend/internal/auth"
	"credentialing-backend/internal/engine"
	"credentialing-backend/internal/metadata"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Owner      string
	File       string
	EmployeeID int64
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a draft payload from a JSON or YAML file",
		Long: `Run a draft payload through the same pipeline the HTTP API uses.

Without --id the draft is addressed by owner and created on first save.
With --id the existing draft is updated and must belong to --owner.

Example:
  draftctl save --owner 5f0c... --file draft.json
  draftctl save --owner 5f0c... --file draft.yaml --id 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner key the draft belongs to")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "payload file (.json, .yaml or .yml)")
	cmd.Flags().Int64Var(&opts.EmployeeID, "id", 0, "save into this employee id instead of the owner's draft")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSave(opts *SaveOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	payload, err := readPayload(opts.File)
	if err != nil {
		return err
	}

	e, err := opts.openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	sink, closeSink, err := audit.Open(e.cfg.Audit, e.store, e.logger)
	if err != nil {
		return fmt.Errorf("open audit sink: %w", err)
	}
	defer closeSink(ctx)

	svc, err := engine.NewDraftService(e.store, e.reg, e.cfg.Drafts,
		engine.WithLogger(e.logger),
		engine.WithAuditSink(sink),
	)
	if err != nil {
		return err
	}

	req := engine.SaveRequest{Mode: engine.ByOwner, Payload: payload, RequestID: "draftctl-" + uuid.NewString()}
	if opts.EmployeeID > 0 {
		req.Mode = engine.ByID
		req.EmployeeID = opts.EmployeeID
	}
	ident := &metadata.Identity{OwnerKey: opts.Owner, Roles: []string{auth.RoleApplicant}}

	result, err := svc.SaveDraft(ctx, req, ident)
	if err != nil {
		return describeSaveError(err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readPayload decodes a payload file. YAML is re-encoded through JSON so both
// formats reach the engine with the same value types.
func readPayload(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%s: payload must be an object", path)
	}
	return payload, nil
}

func describeSaveError(err error) error {
	var appErr *engine.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	if len(appErr.Details) == 0 {
		return fmt.Errorf("%s: %s", appErr.Code, appErr.Message)
	}
	lines := make([]string, 0, len(appErr.Details))
	for _, d := range appErr.Details {
		lines = append(lines, fmt.Sprintf("  %s: %s", d.Field, d.Message))
	}
	return fmt.Errorf("%s: %s\n%s", appErr.Code, appErr.Message, strings.Join(lines, "\n"))
}
