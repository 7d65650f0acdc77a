package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// sourceCLI marks audit entries written by operator commands.
const sourceCLI = "cli"

// parseID parses a non-negative integer argument.
func parseID(name, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return id, nil
}

// withStores opens the stores for one operator command.
func (c *cli) withStores(cmd *cobra.Command, fn func(*stores) error) error {
	s, err := openStores(cmd.Context(), c.cfg, c.log, sourceCLI)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			c.log.Error("error closing stores", "error", closeErr)
		}
	}()
	return fn(s)
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <deviceID>",
		Short: "Show a device's latest compliance record and attempt count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := parseID("device id", args[0])
			if err != nil {
				return err
			}

			return c.withStores(cmd, func(s *stores) error {
				out := cmd.OutOrStdout()
				ctx := cmd.Context()

				rec, err := s.monitor.GetCompliance(ctx, deviceID)
				switch {
				case errors.Is(err, compliance.ErrNotFound):
					fmt.Fprintf(out, "device %d: no compliance record\n", deviceID)
				case err != nil:
					return err
				default:
					fmt.Fprintf(out, "device %d: %s (record %d, policy %d, updated %s)\n",
						deviceID, rec.Status, rec.ID, rec.PolicyID, rec.UpdatedAt.UTC().Format(time.RFC3339))
					if !rec.Compliant() {
						violations, vErr := s.monitor.GetViolations(ctx, rec.ID)
						if vErr != nil {
							return vErr
						}
						for _, v := range violations {
							fmt.Fprintf(out, "  feature %s: compliant=%s\n", v.FeatureCode, v.Status)
						}
					}
				}

				counter, err := s.monitor.AttemptCounter(ctx, deviceID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "failed attempts: %d\n", counter.Attempts)
				return nil
			})
		},
	}
}

func (c *cli) newReportCmd() *cobra.Command {
	var failing []string

	cmd := &cobra.Command{
		Use:   "report <deviceID> <policyID>",
		Short: "Record an evaluation outcome by hand",
		Long: "Record an evaluation outcome for a device and policy. With no --violation\n" +
			"flags the device is reported compliant; each --violation names a failing feature.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := parseID("device id", args[0])
			if err != nil {
				return err
			}
			policyID, err := parseID("policy id", args[1])
			if err != nil {
				return err
			}

			return c.withStores(cmd, func(s *stores) error {
				out := cmd.OutOrStdout()
				if len(failing) == 0 {
					if err := s.monitor.ReportCompliant(cmd.Context(), deviceID, policyID); err != nil {
						return err
					}
					fmt.Fprintf(out, "device %d compliant with policy %d\n", deviceID, policyID)
					return nil
				}

				violations := make([]compliance.FeatureViolation, 0, len(failing))
				for _, code := range failing {
					violations = append(violations, compliance.FeatureViolation{FeatureCode: code})
				}
				recordID, err := s.monitor.ReportViolations(cmd.Context(), deviceID, policyID, violations)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "recorded non-compliance %d for device %d (%d violations)\n",
					recordID, deviceID, len(violations))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&failing, "violation", nil, "failing feature code (repeatable)")
	return cmd
}

func (c *cli) newResetAttemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-attempts <deviceID>",
		Short: "Zero a device's failed attempt counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := parseID("device id", args[0])
			if err != nil {
				return err
			}
			return c.withStores(cmd, func(s *stores) error {
				if err := s.monitor.ResetAttempts(cmd.Context(), deviceID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempts reset for device %d\n", deviceID)
				return nil
			})
		},
	}
}

func (c *cli) newClearViolationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-violations <recordID>",
		Short: "Delete the feature violations attached to a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID("record id", args[0])
			if err != nil {
				return err
			}
			return c.withStores(cmd, func(s *stores) error {
				if err := s.monitor.ClearViolations(cmd.Context(), recordID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "violations cleared for record %d\n", recordID)
				return nil
			})
		},
	}
}
