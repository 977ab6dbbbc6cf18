// Package workspaces executes test callbacks against isolated blockchain
// environments. A Runner binds an init callback to a network mode, resolved
// from configuration or the WORKSPACES_NETWORK environment variable: in
// sandbox mode it boots a disposable local node per runner, on testnet it
// reuses a shared remote chain.
//
// Usage:
//
//	runner, err := workspaces.New(log, func(ctx context.Context, w *workspaces.Workspace) error {
//	    _, err := w.CreateAccounts(ctx, "alice", "bob")
//	    return err
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close(context.Background())
//
//	err = runner.Run(ctx, func(ctx context.Context, w *workspaces.Workspace) error {
//	    alice := w.MustAccount("alice")
//	    return w.Transfer(ctx, alice, w.MustAccount("bob").Address(), amount)
//	})
//
// Each Run sees the state the init callback provisioned, untouched by other
// runs. Sandbox-only helpers such as FastForward are available behind
// RunSandbox, which is a no-op on shared networks.
package workspaces
