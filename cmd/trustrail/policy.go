package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

var policyFilePath string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect Scoring Weight Policies",
}

// policyEngine builds a scoring engine with the built-in policies plus
// any --policies-file additions.
func policyEngine() (*scoring.Engine, error) {
	engine := scoring.NewEngine()
	if policyFilePath != "" {
		data, err := os.ReadFile(policyFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		if err := engine.RegisterPoliciesYAML(data); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available weight policies",
	RunE: func(_ *cobra.Command, _ []string) error {
		engine, err := policyEngine()
		if err != nil {
			return err
		}

		for _, name := range engine.PolicyNames() {
			if name == scoring.DefaultPolicy {
				fmt.Printf("%s (default)\n", name)
			} else {
				fmt.Println(name)
			}
		}
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy>",
	Short: "Show a policy's weights and critical principles",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		engine, err := policyEngine()
		if err != nil {
			return err
		}

		policy, err := engine.Policy(args[0])
		if err != nil {
			return err
		}

		names := make([]string, 0, len(policy.Weights))
		for name := range policy.Weights {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("Policy: %s\n", policy.Name)
		for _, name := range names {
			marker := ""
			if contains(policy.Critical, name) {
				marker = "  ⚠️ critical (score 0 vetoes the receipt)"
			}
			fmt.Printf("  %-22s %5.2f%s\n", name, policy.Weights[name], marker)
		}
		return nil
	},
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd)

	policyCmd.PersistentFlags().StringVar(&policyFilePath, "policies-file", "", "YAML file with additional weight policies")
}
