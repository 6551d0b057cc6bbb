// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

func NewExecCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exec DEVICE -- COMMAND [ARGS...]",
		Short: "Run a command on the CPUs local to a device",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() != 1 {
				return errors.New("separate DEVICE and COMMAND with --")
			}
			lib, err := opts.library()
			if err != nil {
				return err
			}
			dev, err := opts.deviceArg(lib, args[0])
			if err != nil {
				return err
			}

			// The child inherits the affinity of the thread that starts it.
			v := opts.apiVersion()
			if err := lib.SetCurrentThreadAffinity(v, dev); err != nil {
				return err
			}
			defer func() {
				if err := lib.ClearCurrentThreadAffinity(v, dev); err != nil {
					opts.log.Error(err, "Failed to reset thread affinity")
				}
			}()

			child := exec.CommandContext(cmd.Context(), args[1], args[2:]...)
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			if err := child.Run(); err != nil {
				return fmt.Errorf("command %s failed: %w", args[1], err)
			}
			return nil
		},
	}
}
