package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	"github.com/urfave/cli/v2"

	"github.com/blkfs/blkfs/core"
	"github.com/blkfs/blkfs/hostfuse"
	"github.com/blkfs/blkfs/logsink"
	"github.com/blkfs/blkfs/volatile"
)

func main() {
	app := cli.App{
		Usage:     "Mount a fixed-capacity single-directory file system",
		ArgsUsage: "MOUNTPOINT",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "path to the on-disk container file"},
			&cli.StringFlag{Name: "logfile", Aliases: []string{"l"}, Usage: "path to the operation log file", Required: true},
			&cli.BoolFlag{Name: "debug", Usage: "enable FUSE debug logging"},
		},
		Action: mount,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mount(ctx *cli.Context) error {
	mountPoint := ctx.Args().First()
	if mountPoint == "" {
		return fmt.Errorf("missing MOUNTPOINT argument")
	}

	log, closer, err := logsink.Open(ctx.String("logfile"))
	if err != nil {
		return fmt.Errorf("cannot open logfile: %w", err)
	}
	defer closer.Close()

	var fs core.Filesystem
	containerPath := ctx.String("container")
	if containerPath == "" {
		fs = volatile.New()
	} else {
		onDisk := core.New(containerPath, log)
		if err := onDisk.Init(); err != nil {
			return fmt.Errorf("cannot open container: %w", err)
		}
		defer onDisk.Destroy()
		fs = onDisk
	}

	adapter := hostfuse.New(fs)
	nodeFs := pathfs.NewPathNodeFs(adapter, nil)
	conn := nodefs.NewFileSystemConnector(nodeFs.Root(), nodefs.NewOptions())

	server, err := fuse.NewServer(conn.RawFS(), mountPoint, &fuse.MountOptions{
		FsName: "blkfs",
		Debug:  ctx.Bool("debug"),
	})
	if err != nil {
		return fmt.Errorf("cannot mount: %w", err)
	}

	server.Serve()
	return nil
}
