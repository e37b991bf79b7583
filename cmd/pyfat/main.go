// Command pyfat is a thin CLI wrapper over the pyfat library: ls, mkdir,
// add, rm, attr, extract, and mkimage, grounded on the shape of
// dargueta/disko's cmd/main.go (a urfave/cli/v2 App whose actions call
// straight into the library and do nothing else).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/123swk123/pyfat/image"
	"github.com/123swk123/pyfat/tree"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "pyfat",
		Usage: "read, build, and write FAT12 1.44MB floppy images",
		Commands: []*cli.Command{
			{
				Name:      "mkimage",
				Usage:     "create a new, empty 1.44MB floppy image",
				ArgsUsage: "OUTPUT_IMAGE",
				Action:    mkimage,
			},
			{
				Name:      "ls",
				Usage:     "list the contents of a directory",
				ArgsUsage: "IMAGE [PATH]",
				Action:    ls,
			},
			{
				Name:      "mkdir",
				Usage:     "create a subdirectory",
				ArgsUsage: "IMAGE PATH",
				Action:    mkdir,
			},
			{
				Name:      "add",
				Usage:     "add a host file to the image",
				ArgsUsage: "IMAGE PATH HOST_FILE",
				Action:    add,
			},
			{
				Name:      "rm",
				Usage:     "remove a file or empty directory",
				ArgsUsage: "IMAGE PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dir", Usage: "remove a directory instead of a file"},
				},
				Action: rm,
			},
			{
				Name:      "attr",
				Usage:     "set or clear an attribute, e.g. +r, -h, +s, -a",
				ArgsUsage: "IMAGE PATH (+|-)(r|h|s|a)",
				Action:    attr,
			},
			{
				Name:      "extract",
				Usage:     "copy a file's contents out to the host filesystem",
				ArgsUsage: "IMAGE PATH HOST_FILE",
				Action:    extract,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("pyfat: %s", err)
	}
}

func openExisting(path string) (*image.Image, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	img := image.New()
	if err := img.Open(f, 1440); err != nil {
		f.Close()
		return nil, nil, err
	}
	return img, f, nil
}

func writeBack(img *image.Image, f *os.File) error {
	if err := img.Write(f); err != nil {
		return err
	}
	return f.Close()
}

func mkimage(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: pyfat mkimage OUTPUT_IMAGE", 1)
	}
	outPath := c.Args().Get(0)

	img := image.New()
	if err := img.Create(1440); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	return writeBack(img, f)
}

func ls(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: pyfat ls IMAGE [PATH]", 1)
	}
	path := "/"
	if c.Args().Len() >= 2 {
		path = c.Args().Get(1)
	}

	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := img.List(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func mkdir(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: pyfat mkdir IMAGE PATH", 1)
	}
	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}
	if err := img.AddDir(c.Args().Get(1)); err != nil {
		f.Close()
		return err
	}
	return writeBack(img, f)
}

func add(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return cli.Exit("usage: pyfat add IMAGE PATH HOST_FILE", 1)
	}
	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}

	hostFile, err := os.Open(c.Args().Get(2))
	if err != nil {
		f.Close()
		return err
	}
	defer hostFile.Close()

	info, err := hostFile.Stat()
	if err != nil {
		f.Close()
		return err
	}

	if err := img.AddFile(c.Args().Get(1), hostFile, uint32(info.Size())); err != nil {
		f.Close()
		return err
	}
	return writeBack(img, f)
}

func rm(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: pyfat rm IMAGE PATH [--dir]", 1)
	}
	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}

	path := c.Args().Get(1)
	if c.Bool("dir") {
		err = img.RemoveDir(path)
	} else {
		err = img.RemoveFile(path)
	}
	if err != nil {
		f.Close()
		return err
	}
	return writeBack(img, f)
}

func attr(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return cli.Exit("usage: pyfat attr IMAGE PATH (+|-)(r|h|s|a)", 1)
	}
	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}

	path := c.Args().Get(1)
	spec := c.Args().Get(2)
	kind, set, err := parseAttrSpec(spec)
	if err != nil {
		f.Close()
		return err
	}

	if set {
		err = img.SetAttr(path, kind)
	} else {
		err = img.ClearAttr(path, kind)
	}
	if err != nil {
		f.Close()
		return err
	}
	return writeBack(img, f)
}

func parseAttrSpec(spec string) (tree.AttrKind, bool, error) {
	if len(spec) != 2 || (spec[0] != '+' && spec[0] != '-') {
		return 0, false, cli.Exit("attribute spec must look like +r, -h, +s, or -a", 1)
	}
	set := spec[0] == '+'

	switch spec[1] {
	case 'r':
		return tree.ReadOnly, set, nil
	case 'h':
		return tree.Hidden, set, nil
	case 's':
		return tree.System, set, nil
	case 'a':
		return tree.Archive, set, nil
	default:
		return 0, false, cli.Exit("unknown attribute letter: "+string(spec[1]), 1)
	}
}

func extract(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return cli.Exit("usage: pyfat extract IMAGE PATH HOST_FILE", 1)
	}
	img, f, err := openExisting(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	dst, err := os.Create(c.Args().Get(2))
	if err != nil {
		return err
	}
	defer dst.Close()

	return img.Extract(c.Args().Get(1), dst)
}
