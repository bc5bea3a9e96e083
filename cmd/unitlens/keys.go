package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"unitlens/pkg/auth"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys stored in Redis",
	}
	cmd.AddCommand(newKeysCreateCmd(a), newKeysListCmd(a), newKeysRevokeCmd(a))
	return cmd
}

func (a *app) keyStore() (*auth.RedisAPIKeyStore, func()) {
	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr()})
	return auth.NewRedisAPIKeyStore(rdb), func() { _ = rdb.Close() }
}

func newKeysCreateCmd(a *app) *cobra.Command {
	var name, owner, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %q", err, role)
			}

			store, closeFn := a.keyStore()
			defer closeFn()

			info := auth.APIKeyInfo{Name: name, OwnerID: owner, Role: r}
			if ttl > 0 {
				info.ExpiresAt = time.Now().Add(ttl).Unix()
			}
			key, err := store.CreateKey(cmd.Context(), info)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "human readable key name")
	cmd.Flags().StringVar(&owner, "owner", "", "owner the key is listed under")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "key lifetime (0 never expires)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn := a.keyStore()
			defer closeFn()

			keys, err := store.ListKeys(cmd.Context(), owner)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(keys)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner to list keys for")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn := a.keyStore()
			defer closeFn()

			if err := store.RevokeKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}
