package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"indoornav/internal/mapping"
	"indoornav/internal/overlay"
	"indoornav/internal/routing"
	"indoornav/internal/tracker"
	"indoornav/internal/tui"
	"indoornav/internal/web"
)

func serveCmd() *cobra.Command {
	var (
		addr   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the positioning pipeline behind the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger(os.Stdout)
			p, err := newPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if err := p.startSource(ctx, source, log); err != nil {
				return err
			}

			client := routing.NewClient(p.site.RoutingConfig(), log)
			srv := web.NewServer(web.Deps{
				Locator:   p.service,
				Navigator: routing.NewNavigator(client),
				Mapper:    p.assets.Mapper,
				Nodes:     p.assets.Nodes,
				Plan:      p.assets.Plan,
			}, log)

			trk := tracker.NewTracker(p.service, p.site.Tracker.Interval, log, srv)
			go trk.Start(ctx)

			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&source, "source", sourceMQTT, "sample source: mqtt, ble or demo")
	return cmd
}

func locateCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Stream position fixes to stdout as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger(os.Stderr)
			p, err := newPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if err := p.startSource(ctx, source, log); err != nil {
				return err
			}
			sink, err := tracker.NewCSVSink(cmd.OutOrStdout(), log)
			if err != nil {
				return err
			}
			tracker.NewTracker(p.service, p.site.Tracker.Interval, log, sink).Start(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", sourceMQTT, "sample source: mqtt, ble or demo")
	return cmd
}

func trackCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Show beacons and the live position in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// the terminal belongs to the UI
			log := setupLogger(io.Discard)
			p, err := newPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if err := p.startSource(ctx, source, log); err != nil {
				return err
			}
			model := tui.New(p.service, p.assets.Mapper, p.assets.Nodes, p.site.Tracker.Interval)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", sourceDemo, "sample source: mqtt, ble or demo")
	return cmd
}

func routeCmd() *cobra.Command {
	var (
		profile string
		out     string
		pixels  bool
	)
	cmd := &cobra.Command{
		Use:   "route START GOAL",
		Short: "Ask the path planner for a route between two nodes",
		Long: `route requests a path from START to GOAL. Both are node ids, or
floor plan pixels written as x,y with --pixels; pixels snap to the nearest
node. With --out the route is drawn over the floor plan as a PNG.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger(os.Stderr)
			site, err := loadSite()
			if err != nil {
				return err
			}
			assets, err := site.LoadAssets()
			if err != nil {
				return err
			}
			prof, err := routing.ParseProfile(profile)
			if err != nil {
				return err
			}

			nav := routing.NewNavigator(routing.NewClient(site.RoutingConfig(), log))
			nav.SetProfile(prof)
			for _, arg := range args {
				id, err := resolveNode(arg, pixels, assets.Mapper, assets.Nodes)
				if err != nil {
					return err
				}
				if err := nav.Pick(id); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*site.Routing.Timeout*time.Duration(site.Routing.Retries+1))
			defer cancel()
			res, err := nav.Submit(ctx)
			switch {
			case errors.Is(err, routing.ErrEmptyRoute):
				fmt.Fprintln(cmd.OutOrStdout(), "no path found")
			case err != nil:
				return err
			default:
				ov := overlay.New(assets.Mapper, assets.Nodes)
				fmt.Fprintf(cmd.OutOrStdout(), "path %v (%.1f m, %s)\n", res.Nodes, ov.Length(res.Nodes), prof)
			}

			if out == "" {
				return nil
			}
			sel := nav.Selection()
			img := overlay.New(assets.Mapper, assets.Nodes).Render(assets.Plan, overlay.Scene{Route: sel.Route.Nodes, Picks: sel.Picks})
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := overlay.WritePNG(f, img); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", string(routing.ProfileDefault), "mobility profile: default, wheelchair or crutches")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the route over the floor plan to this PNG")
	cmd.Flags().BoolVar(&pixels, "pixels", false, "read START and GOAL as x,y floor plan pixels")
	return cmd
}

func resolveNode(arg string, pixels bool, m *mapping.Mapper, nodes *mapping.NodeTable) (int, error) {
	if !pixels {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("node id %q: %w", arg, err)
		}
		if _, ok := nodes.Node(id); !ok {
			return 0, fmt.Errorf("node %d not in table (%d nodes)", id, nodes.Len())
		}
		return id, nil
	}

	xs, ys, ok := strings.Cut(arg, ",")
	if !ok {
		return 0, fmt.Errorf("pixel %q: want x,y", arg)
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, fmt.Errorf("pixel %q: %w", arg, err)
	}
	py, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, fmt.Errorf("pixel %q: %w", arg, err)
	}
	x, y := m.ImageToWorld(px, py)
	n, ok := nodes.NearestNode(x, y)
	if !ok {
		return 0, fmt.Errorf("pixel %q: %w", arg, mapping.ErrNoNearbyNode)
	}
	return n.ID, nil
}
