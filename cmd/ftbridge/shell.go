// cmd/ftbridge/shell.go
package main

import (
	"context"
	"time"

	"github.com/abiosoft/ishell/v2"

	"github.com/tamzrod/ftbridge/internal/bridge"
	"github.com/tamzrod/ftbridge/internal/bus"
	"github.com/tamzrod/ftbridge/internal/frame"
)

// runShell blocks until the shell exits or ctx is done.
func runShell(ctx context.Context, b *bridge.Bridge) {
	shell := ishell.New()
	shell.Println("ftbridge development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "ft",
		Help: "print the cached force/torque values",
		Func: func(c *ishell.Context) {
			r := b.Snapshot()
			c.Printf("forces  %v  |F|=%.1f\n", r.Forces, r.ForceVec().Len())
			c.Printf("torques %v  |T|=%.1f\n", r.Torques, r.TorqueVec().Len())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "bus",
		Help: "print controller state and counters",
		Func: func(c *ishell.Context) {
			st, err := b.Status()
			if err != nil {
				c.Println("status:", err)
			} else {
				c.Printf("state %s tx=%d rx=%d\n", st.State, st.Counts.TX, st.Counts.RX)
			}
			h := b.Health()
			c.Printf("health %d seconds_in_error=%d bus_off=%d recovery_failures=%d\n",
				h.Health, h.SecondsInError, h.BusOffCount, h.RecoveryFailures)
			c.Printf("%+v\n", b.Stats())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "recover",
		Help: "request bus-off recovery",
		Func: func(c *ishell.Context) {
			rctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := b.Recover(rctx); err != nil {
				c.Println("recover failed:", err)
				return
			}
			c.Println("recovered")
		},
	})

	// sim-only hooks
	if s, ok := b.Controller().(*bus.Sim); ok {
		shell.AddCmd(&ishell.Cmd{
			Name: "busoff",
			Help: "force the simulated controller into bus-off",
			Func: func(c *ishell.Context) {
				s.SetState(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255}})
			},
		})
		shell.AddCmd(&ishell.Cmd{
			Name: "led",
			Help: "led <on|off>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Println(c.Cmd.Help)
					return
				}
				s.Deliver(frame.EncodeIndicator(frame.DefaultIndicatorID, c.Args[0] == "on"))
			},
		})
	}

	go func() {
		<-ctx.Done()
		shell.Close()
	}()

	shell.Run()
}
