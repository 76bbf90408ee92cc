package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/falcon-client/pkg/falcon"
)

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check credentials and API reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.client.IsReachable(cmd.Context()) {
				return errors.New("API not reachable")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newDevicesCommand(a *app) *cobra.Command {
	var (
		filter   string
		hostname string
		servers  bool
		idsOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "devices [DEVICE_ID...]",
		Short: "List hosts or show host details",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := falcon.NewDeviceService(a.client, a.options())
			ctx := cmd.Context()

			if servers {
				devices, err := svc.GetAllServerDevices(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd, devices)
			}

			ids := args
			if len(ids) == 0 {
				var err error
				if hostname != "" {
					ids, err = svc.GetDeviceIDsByHostname(ctx, hostname)
				} else {
					ids, err = svc.ListDeviceIDs(ctx, filter)
				}
				if err != nil {
					return err
				}
			}

			if idsOnly {
				writeLines(cmd, ids)
				return nil
			}

			devices, err := svc.GetDeviceDetails(ctx, ids)
			if err != nil {
				return err
			}
			return writeJSON(cmd, devices)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "FQL filter for the id query")
	cmd.Flags().StringVar(&hostname, "hostname", "", "match hosts by exact hostname")
	cmd.Flags().BoolVar(&servers, "servers", false, "only servers and domain controllers")
	cmd.Flags().BoolVar(&idsOnly, "ids-only", false, "print ids without fetching details")
	cmd.MarkFlagsMutuallyExclusive("filter", "hostname", "servers")
	return cmd
}

func newAlertsCommand(a *app) *cobra.Command {
	var (
		filter  string
		details bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Query alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := falcon.NewAlertService(a.client, a.options())
			ctx := cmd.Context()

			ids := svc.GetAlertIDs(ctx, filter)
			if !ids.Success() {
				return fmt.Errorf("query alerts (status %d): %s", ids.StatusCode, ids.ErrorMessage)
			}
			if !details {
				writeLines(cmd, ids.Data)
				return nil
			}

			res := svc.GetAlertDetails(ctx, ids.Data)
			if !res.Success() {
				return fmt.Errorf("alert details (status %d): %s", res.StatusCode, res.ErrorMessage)
			}
			return writeJSON(cmd, res.Data)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "FQL filter")
	cmd.Flags().BoolVar(&details, "details", false, "fetch alert details")
	return cmd
}

func newVulnsCommand(a *app) *cobra.Command {
	var (
		aid     string
		filter  string
		facets  bool
		idsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "vulns",
		Short: "Query Spotlight vulnerabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := falcon.NewSpotlightService(a.client)
			ctx := cmd.Context()

			if idsOnly {
				if aid == "" {
					return errors.New("--ids-only requires --aid")
				}
				ids, err := svc.GetVulnerabilityIDsForHost(ctx, aid)
				if err != nil {
					return err
				}
				writeLines(cmd, ids)
				return nil
			}

			q := falcon.VulnerabilityQuery{AID: aid, Filter: filter}
			if facets {
				q.Facets = falcon.DefaultFacets
			}
			vulns, err := svc.GetVulnerabilityDetails(ctx, q)
			if err != nil {
				return err
			}
			return writeJSON(cmd, vulns)
		},
	}

	cmd.Flags().StringVar(&aid, "aid", "", "host id")
	cmd.Flags().StringVar(&filter, "filter", "", "FQL filter, overrides --aid")
	cmd.Flags().BoolVar(&facets, "facets", true, "include remediation and evaluation logic")
	cmd.Flags().BoolVar(&idsOnly, "ids-only", false, "print vulnerability ids only")
	return cmd
}
