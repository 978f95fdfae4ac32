package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aligator/flatfat"
	"github.com/aligator/flatfat/internal/config"
	"github.com/aligator/flatfat/internal/logging"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// volumePrefix marks an argument as a file on the volume, everything else is a host path.
const volumePrefix = "vol:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewOrNop(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	defer logger.Sync()

	app := newApp(os.Stdout, afero.NewOsFs(), cfg, logger)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type tool struct {
	out  io.Writer
	host afero.Fs
	cfg  *config.Config
	log  *zap.Logger
}

func newApp(out io.Writer, host afero.Fs, cfg *config.Config, logger *zap.Logger) *cli.App {
	t := &tool{out: out, host: host, cfg: cfg, log: logger}

	return &cli.App{
		Name:      "flatfat",
		Usage:     "manage files inside a single-file volume",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "volume",
				Aliases: []string{"v"},
				Usage:   "path of the volume file",
				EnvVars: []string{config.Prefix + "_VOLUME"},
				Value:   cfg.Volume.Path,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "mkfs",
				Usage: "format a new volume, an existing file is overwritten",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "size", Usage: "volume size in MiB", Value: uint(cfg.Volume.SizeMB)},
					&cli.UintFlag{Name: "cluster", Usage: "cluster size in KiB", Value: uint(cfg.Volume.ClusterSizeKB)},
				},
				Action: t.mkfs,
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "list all files",
				Action:  t.ls,
			},
			{
				Name:      "touch",
				Usage:     "create empty files",
				ArgsUsage: "NAME...",
				Action:    t.touch,
			},
			{
				Name:      "cp",
				Aliases:   []string{"copy"},
				Usage:     "copy a file, prefix paths on the volume with " + volumePrefix,
				ArgsUsage: "SOURCE DESTINATION",
				Action:    t.cp,
			},
			{
				Name:      "mv",
				Aliases:   []string{"move"},
				Usage:     "move a file, prefix paths on the volume with " + volumePrefix,
				ArgsUsage: "SOURCE DESTINATION",
				Action:    t.mv,
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "remove files, " + flatfat.MatchAll + " removes all of them",
				ArgsUsage: "NAME...",
				Action:    t.rm,
			},
			{
				Name:      "cat",
				Usage:     "print the content of a file",
				ArgsUsage: "NAME",
				Action:    t.cat,
			},
			{
				Name:   "df",
				Usage:  "show the cluster usage",
				Action: t.df,
			},
			{
				Name:   "fat",
				Usage:  "dump the allocation table",
				Action: t.fat,
			},
		},
	}
}

// parseLocation splits the volume prefix off arg.
func parseLocation(arg string) (string, flatfat.Location) {
	if name, ok := strings.CutPrefix(arg, volumePrefix); ok {
		return name, flatfat.InVolume
	}
	return arg, flatfat.External
}

// withVolume opens the volume of the --volume flag for the duration of fn.
func (t *tool) withVolume(c *cli.Context, fn func(v *flatfat.Volume) error) error {
	path := c.String("volume")
	if path == "" {
		return errors.New("no volume given, use --volume or " + config.Prefix + "_VOLUME")
	}

	v, err := flatfat.Open(t.host, path, flatfat.WithHost(t.host), flatfat.WithLogger(t.log))
	if err != nil {
		return err
	}

	err = fn(v)
	if closeErr := v.Close(); err == nil {
		err = closeErr
	}
	return err
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("%s needs %d arguments, usage: %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}

func (t *tool) mkfs(c *cli.Context) error {
	path := c.String("volume")
	if path == "" {
		return errors.New("no volume given, use --volume or " + config.Prefix + "_VOLUME")
	}

	size := uint32(c.Uint("size")) * flatfat.MiB
	cluster := uint32(c.Uint("cluster")) * flatfat.KiB
	v, err := flatfat.Create(t.host, path, size, cluster, flatfat.WithLogger(t.log))
	if err != nil {
		return err
	}

	g := v.Geometry()
	fmt.Fprintf(t.out, "formatted %s: %d clusters of %d bytes, %d entries per directory cluster\n",
		path, g.Clusters, g.ClusterSize, g.EntriesPerCluster)
	return v.Close()
}

func (t *tool) ls(c *cli.Context) error {
	return t.withVolume(c, func(v *flatfat.Volume) error {
		w := tabwriter.NewWriter(t.out, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "SLOT\tNAME\tSIZE\tCLUSTER\tCREATED")
		for _, e := range v.Entries() {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", e.Slot, e.Name, e.Size, e.StartCluster, e.Created.Format(time.RFC3339))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "%d files\n", v.FileCount())
		return nil
	})
}

func (t *tool) touch(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return t.withVolume(c, func(v *flatfat.Volume) error {
		for _, name := range c.Args().Slice() {
			if _, err := v.CreateFile(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *tool) cp(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	src, from := parseLocation(c.Args().Get(0))
	dst, to := parseLocation(c.Args().Get(1))
	return t.withVolume(c, func(v *flatfat.Volume) error {
		return v.Copy(src, dst, from, to)
	})
}

func (t *tool) mv(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	src, from := parseLocation(c.Args().Get(0))
	dst, to := parseLocation(c.Args().Get(1))
	return t.withVolume(c, func(v *flatfat.Volume) error {
		return v.Move(src, dst, from, to)
	})
}

func (t *tool) rm(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return t.withVolume(c, func(v *flatfat.Volume) error {
		for _, name := range c.Args().Slice() {
			if err := v.Delete(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *tool) cat(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return t.withVolume(c, func(v *flatfat.Volume) error {
		r, err := v.Read(c.Args().First())
		if err != nil {
			return err
		}
		_, err = io.Copy(t.out, r)
		return err
	})
}

func (t *tool) df(c *cli.Context) error {
	return t.withVolume(c, func(v *flatfat.Volume) error {
		u := v.Usage()
		w := tabwriter.NewWriter(t.out, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CLUSTER SIZE\tTOTAL\tUSED\tFREE\tUSE%")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d%%\n", u.ClusterSize, u.Total, u.Used, u.Free, u.UsedPercent())
		return w.Flush()
	})
}

// fat prints the allocation table, eight clusters per line.
func (t *tool) fat(c *cli.Context) error {
	return t.withVolume(c, func(v *flatfat.Volume) error {
		states := v.AllocationTable()
		for i, s := range states {
			sep := " "
			if i%8 == 7 || i == len(states)-1 {
				sep = "\n"
			}
			fmt.Fprint(t.out, s.String()+sep)
		}
		return nil
	})
}
