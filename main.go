package main

import (
	"os"

	"erpfin/bank-sync/cmd/connections"
	"erpfin/bank-sync/cmd/parse"
	"erpfin/bank-sync/cmd/reconcile"
	"erpfin/bank-sync/cmd/root"
	synccmd "erpfin/bank-sync/cmd/sync"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(parse.Cmd)
	root.Cmd.AddCommand(synccmd.Cmd)
	root.Cmd.AddCommand(reconcile.Cmd)
	root.Cmd.AddCommand(connections.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
