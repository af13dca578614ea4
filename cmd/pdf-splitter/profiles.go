package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/pathtemplate"
	"github.com/joseph-ayodele/pdf-splitter/internal/profiles"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage index profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFIELDS\tPATTERN\tOUTPUT FOLDER")
		for _, p := range e.profiles.ListProfiles() {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Name, len(p.Fields), p.OutputPattern, p.OutputFolder)
		}
		return tw.Flush()
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile with its fields and a path preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		p, ok := e.profiles.GetProfile(args[0])
		if !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		printf(cmd, "Name:          %s\n", p.Name)
		if p.Description != "" {
			printf(cmd, "Description:   %s\n", p.Description)
		}
		printf(cmd, "Pattern:       %s\n", p.OutputPattern)
		printf(cmd, "Preview:       %s\n", pathtemplate.EnsurePDFExt(pathtemplate.Preview(p.OutputPattern, p.FieldValues())))
		printf(cmd, "Input folder:  %s\n", p.InputFolder)
		printf(cmd, "Output folder: %s\n", p.OutputFolder)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\nFIELD\tTYPE\tREQUIRED\tVALUE\tKEY")
		for _, f := range p.Fields {
			value := f.Value
			if f.FieldType == constants.FieldDropdown {
				value = fmt.Sprintf("%s [%s]", value, strings.Join(f.Options, "|"))
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t{%s}\n", f.Name, f.FieldType, f.Required, value, pathtemplate.Key(f.Name))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if missing := pathtemplate.Missing(p.OutputPattern, p.FieldValues()); len(missing) > 0 {
			printf(cmd, "\nwarning: pattern keys without a field: %s\n", strings.Join(missing, ", "))
		}
		return nil
	},
}

var (
	addDescription string
	addPattern     string
	addInput       string
	addOutput      string
	addFields      []string
)

var profilesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a profile",
	Long: `Create a profile. Fields are given as name[:type[:required[:opt1|opt2...]]],
for example --field "Vendor::required" --field "Status:dropdown::Open|Closed".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		fields := make([]entity.IndexField, 0, len(addFields))
		for _, spec := range addFields {
			f, err := parseFieldSpec(spec)
			if err != nil {
				return err
			}
			fields = append(fields, f)
		}
		p, err := e.profiles.CreateProfile(profiles.CreateProfileRequest{
			Name:          args[0],
			Description:   addDescription,
			OutputPattern: addPattern,
			InputFolder:   addInput,
			OutputFolder:  addOutput,
			Fields:        fields,
		})
		if err != nil {
			return err
		}
		printf(cmd, "Created profile %q with %d fields\n", p.Name, len(p.Fields))
		return nil
	},
}

var profilesRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.profiles.DeleteProfile(args[0]); err != nil {
			return err
		}
		printf(cmd, "Deleted profile %q\n", args[0])
		return nil
	},
}

var profilesDuplicateCmd = &cobra.Command{
	Use:   "duplicate <name>",
	Short: "Copy a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		dup, err := e.profiles.DuplicateProfile(args[0])
		if err != nil {
			return err
		}
		printf(cmd, "Created %q\n", dup.Name)
		return nil
	},
}

var (
	setPattern string
	setInput   string
	setOutput  string
	setRename  string
)

var profilesSetCmd = &cobra.Command{
	Use:   "set <profile> [field=value...]",
	Short: "Set field values or profile settings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		name := args[0]
		for _, kv := range args[1:] {
			field, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("expected field=value, got %q", kv)
			}
			if err := e.profiles.SetFieldValue(name, strings.TrimSpace(field), strings.TrimSpace(value)); err != nil {
				return err
			}
		}

		flags := cmd.Flags()
		if !flags.Changed("pattern") && !flags.Changed("input") && !flags.Changed("output-folder") && !flags.Changed("rename") {
			return nil
		}
		edit, err := e.profiles.BeginEdit(name)
		if err != nil {
			return err
		}
		if flags.Changed("pattern") {
			edit.Profile.OutputPattern = setPattern
		}
		if flags.Changed("input") {
			edit.Profile.InputFolder = setInput
		}
		if flags.Changed("output-folder") {
			edit.Profile.OutputFolder = setOutput
		}
		if flags.Changed("rename") {
			edit.Profile.Name = setRename
		}
		if err := edit.Commit(); err != nil {
			edit.Discard()
			return err
		}
		printf(cmd, "Updated profile %q\n", edit.Profile.Name)
		return nil
	},
}

// parseFieldSpec reads name[:type[:required[:opt1|opt2...]]].
func parseFieldSpec(spec string) (entity.IndexField, error) {
	parts := strings.SplitN(spec, ":", 4)
	f := entity.IndexField{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		ft, ok := constants.ParseFieldType(parts[1])
		if !ok {
			return f, fmt.Errorf("field %q: unknown type %q (want one of %s)",
				f.Name, parts[1], strings.Join(constants.FieldTypesAsStrings(), ", "))
		}
		f.FieldType = ft
	}
	if len(parts) > 2 {
		switch strings.ToLower(strings.TrimSpace(parts[2])) {
		case "", "false", "optional":
		case "true", "required", "yes":
			f.Required = true
		default:
			return f, fmt.Errorf("field %q: required must be required or optional, got %q", f.Name, parts[2])
		}
	}
	if len(parts) > 3 {
		for _, opt := range strings.Split(parts[3], "|") {
			if opt = strings.TrimSpace(opt); opt != "" {
				f.Options = append(f.Options, opt)
			}
		}
	}
	return f, nil
}

func init() {
	profilesAddCmd.Flags().StringVar(&addDescription, "description", "", "profile description")
	profilesAddCmd.Flags().StringVar(&addPattern, "pattern", "", "output pattern, e.g. {vendor}/{year}")
	profilesAddCmd.Flags().StringVar(&addInput, "input", "", "input folder watched for new PDFs")
	profilesAddCmd.Flags().StringVar(&addOutput, "output-folder", "", "output folder for this profile")
	profilesAddCmd.Flags().StringArrayVar(&addFields, "field", nil, "field spec name[:type[:required[:options]]] (repeatable)")

	profilesSetCmd.Flags().StringVar(&setPattern, "pattern", "", "new output pattern")
	profilesSetCmd.Flags().StringVar(&setInput, "input", "", "new input folder")
	profilesSetCmd.Flags().StringVar(&setOutput, "output-folder", "", "new output folder")
	profilesSetCmd.Flags().StringVar(&setRename, "rename", "", "new profile name")

	profilesCmd.AddCommand(profilesListCmd, profilesShowCmd, profilesAddCmd, profilesRemoveCmd, profilesDuplicateCmd, profilesSetCmd)
	rootCmd.AddCommand(profilesCmd)
}
