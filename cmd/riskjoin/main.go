// Command riskjoin joins food establishment licenses with crime incident
// reports and scores each establishment by the incidents nearby.
//
//	riskjoin run --config riskjoin.yaml
//	riskjoin geocode --food Food.csv --locs locs.json --api-key KEY
//	riskjoin near --db runs.sqlite --run RUN --lat 42.35 --lng -71.06 --radius 100
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "riskjoin:", err)
		os.Exit(1)
	}
}
