// Command blockfsh is the interactive shell for package blockfs: it
// tokenizes command lines, translates each into one call against a
// blockfs.Engine, and prints a human-readable result. Tokenization,
// diagnostics and program startup/exit are the shell's job, not the
// engine's (see SPEC_FULL.md §1).
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/IgorBoyarshin/blockfs"
)

func main() {
	app := &cli.App{
		Name:  "blockfsh",
		Usage: "Shell for a block-device-backed filesystem image",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create or wipe an image with the default geometry",
				ArgsUsage: "IMAGE_FILE",
				Action:    formatImage,
			},
		},
		Action: runShell,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func formatImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("format requires an image path", 1)
	}
	return blockfs.Format(
		path,
		blockfs.DefaultTotalBlocks,
		blockfs.DefaultBlockSize,
		blockfs.DefaultMaxDescriptors,
		blockfs.DefaultFanOut,
	)
}

// runShell drives the line-oriented REPL from spec.md §6. It never exits on
// an engine error — only an I/O failure reading stdin or writing the image
// is fatal.
func runShell(c *cli.Context) error {
	engine := blockfs.NewEngine()
	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		fmt.Fprint(out, "blockfs> ")
		out.Flush()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		words := strings.Fields(line)
		cmd, args := words[0], words[1:]

		if cmd == "exit" || cmd == "q" {
			break
		}

		if err := dispatch(out, engine, cmd, args); err != nil {
			if !isEngineError(err) {
				return err
			}
			fmt.Fprintf(out, "error: %s\n", err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func dispatch(out *bufio.Writer, e *blockfs.Engine, cmd string, args []string) error {
	switch cmd {
	case "mount":
		if len(args) != 1 {
			return usage("mount <file>")
		}
		if err := e.Mount(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "mounted")

	case "umount":
		if err := e.Umount(); err != nil {
			return err
		}
		fmt.Fprintln(out, "unmounted")

	case "filestat":
		if len(args) != 1 {
			return usage("filestat <desc>")
		}
		idx, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		st, err := e.Filestat(idx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "type=%s size=%d links=%d blocks=%d\n", st.Type, st.Size, st.NumLinks, st.NumBlocks)

	case "ls":
		entries, err := e.Ls()
		if err != nil {
			return err
		}
		for _, ent := range entries {
			fmt.Fprintf(out, "%s\t%d\n", ent.Name, ent.Index)
		}

	case "create":
		if len(args) != 1 {
			return usage("create <path>")
		}
		if err := e.Create(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "created")

	case "open":
		if len(args) != 1 {
			return usage("open <path>")
		}
		h, err := e.Open(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "handle=%d\n", h)

	case "close":
		if len(args) != 1 {
			return usage("close <handle>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("close <handle>")
		}
		if err := e.Close(h); err != nil {
			return err
		}
		fmt.Fprintln(out, "closed")

	case "read":
		if len(args) != 3 {
			return usage("read <handle> <offset> <size>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("read <handle> <offset> <size>")
		}
		offset, err := parseUint(args[1])
		if err != nil {
			return err
		}
		size, err := parseUint(args[2])
		if err != nil {
			return err
		}
		data, err := e.Read(h, offset, size)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", string(data))

	case "write":
		if len(args) < 2 {
			return usage("write <handle> <offset> <text>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("write <handle> <offset> <text>")
		}
		offset, err := parseUint(args[1])
		if err != nil {
			return err
		}
		text := strings.Join(args[2:], " ")
		if err := e.Write(h, offset, []byte(text)); err != nil {
			return err
		}
		fmt.Fprintln(out, "written")

	case "link":
		if len(args) != 2 {
			return usage("link <existing> <new>")
		}
		if err := e.Link(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "linked")

	case "unlink":
		if len(args) != 1 {
			return usage("unlink <path>")
		}
		if err := e.Unlink(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "unlinked")

	case "truncate":
		if len(args) != 2 {
			return usage("truncate <path> <size>")
		}
		size, err := parseUint(args[1])
		if err != nil {
			return err
		}
		if err := e.Truncate(args[0], size); err != nil {
			return err
		}
		fmt.Fprintln(out, "truncated")

	case "mkdir":
		if len(args) != 1 {
			return usage("mkdir <path>")
		}
		if err := e.Mkdir(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "created")

	case "rmdir":
		if len(args) != 1 {
			return usage("rmdir <path>")
		}
		if err := e.Rmdir(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "removed")

	case "cd":
		if len(args) != 1 {
			return usage("cd <path>")
		}
		if err := e.Cd(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")

	case "pwd":
		idx, err := e.Pwd()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", idx)

	case "symlink":
		if len(args) != 2 {
			return usage("symlink <target> <link>")
		}
		if err := e.Symlink(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "linked")

	default:
		fmt.Fprintf(out, "unknown command: %s\n", cmd)
	}
	return nil
}

// isEngineError reports whether err is one of blockfs's own failure values
// (a bare Kind or a Kind carrying context) as opposed to an I/O failure on
// the underlying image, which is fatal per spec.md §7.
func isEngineError(err error) bool {
	switch err.(type) {
	case blockfs.Kind, *blockfs.Error:
		return true
	default:
		return false
	}
}

func usage(msg string) error {
	return blockfs.RangeError.WithMessage("usage: " + msg)
}

func parseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, blockfs.RangeError.WithMessage("not a number: " + s)
	}
	return uint(n), nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, blockfs.RangeError.WithMessage("not a number: " + s)
	}
	return uint32(n), nil
}
