/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellSocket string

var shellCmd = &cobra.Command{
	Use:   "shell [command...]",
	Short: "Talk to a running server; with arguments, send one command and exit",
	RunE:  runShell,
}

func init() {
	shellCmd.Flags().StringVarP(&shellSocket, "socket", "s", "", "control socket path (default from config)")
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("PING"),
	readline.PcItem("ABOUT"),
	readline.PcItem("STATUS"),
	readline.PcItem("LIST"),
	readline.PcItem("WHOAMI"),
	readline.PcItem("LOAD"),
	readline.PcItem("ADD"),
	readline.PcItem("PLAY"),
	readline.PcItem("TOGGLE"),
	readline.PcItem("PAUSE"),
	readline.PcItem("RESUME"),
	readline.PcItem("NEXT"),
	readline.PcItem("PREV"),
	readline.PcItem("SEEK"),
	readline.PcItem("OFFSET"),
	readline.PcItem("LINK", readline.PcItem("on"), readline.PcItem("off")),
	channelItem("ENABLE", readline.PcItem("on"), readline.PcItem("off")),
	channelItem("GAIN"),
	channelItem("CUTOFF"),
	channelItem("FILTER", readline.PcItem("highpass"), readline.PcItem("lowpass")),
	channelItem("ROUTE", readline.PcItem("left"), readline.PcItem("right"), readline.PcItem("both")),
	readline.PcItem("QUIT"),
)

func channelItem(verb string, next ...readline.PrefixCompleterInterface) *readline.PrefixCompleter {
	return readline.PcItem(verb,
		readline.PcItem("near", next...),
		readline.PcItem("far", next...),
	)
}

func runShell(cmd *cobra.Command, args []string) error {
	socket := cfg.Server.Socket
	if shellSocket != "" {
		socket = shellSocket
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("connect %s: %w", socket, err)
	}
	defer conn.Close()

	if len(args) > 0 {
		return sendOnce(conn, strings.Join(args, " "), cmd.OutOrStdout())
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "duet> ",
		HistoryFile:     filepath.Join(os.TempDir(), "duet-shell.history"),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "QUIT",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "connected to %s, type QUIT to exit\n", socket)

	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fmt.Fprintln(rl.Stdout(), "RECV:", sc.Text())
		}
		fmt.Fprintln(rl.Stdout(), "SOCKET CLOSED")
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			fmt.Fprintln(rl.Stdout(), "Bye.")
			return nil
		}
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

// sendOnce writes one command and prints the first reply that is not an
// event line.
func sendOnce(conn net.Conn, line string, out io.Writer) error {
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return err
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		reply := sc.Text()
		if strings.HasPrefix(reply, "EVENT ") {
			continue
		}
		fmt.Fprintln(out, reply)
		if strings.HasPrefix(reply, "ERR ") {
			return errors.New(reply)
		}
		return nil
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
