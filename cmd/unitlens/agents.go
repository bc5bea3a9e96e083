package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"unitlens/pkg/coordination/etcd"
)

func newAgentsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List unitlens agents registered in etcd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.EtcdEndpoints) == 0 {
				return fmt.Errorf("etcd_endpoints is not configured")
			}
			registry, err := etcd.NewEtcdRegistry(a.cfg.EtcdEndpoints, etcdDialTimeout)
			if err != nil {
				return err
			}
			defer registry.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), etcdDialTimeout)
			defer cancel()
			agents, err := registry.ListAgents(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(agents)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tVERSION\tHOST\tLAST HEARTBEAT")
			for _, ag := range agents {
				host := "-"
				if ag.Host != nil {
					host = ag.Host.Hostname
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ag.ID, orDash(ag.Address), orDash(ag.Version), host,
					ag.LastHeartbeat.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
