package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/astaxie/beego/logs"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/node"
	"github.com/spf13/cobra"
)

type StartupCmd struct {
	Cmd *cobra.Command
}

func GetStartCmd() *StartupCmd {
	cmd := new(StartupCmd)
	var envCfgPath string

	cmd.Cmd = &cobra.Command{
		Use:           "start",
		Short:         "Start up the remote signer.",
		Example:       "gokms start --conf /home/rd/gokms/conf",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartSigner(envCfgPath)
		},
	}

	cmd.Cmd.Flags().StringVarP(&envCfgPath, "conf", "c", "",
		"engine environment config file path")

	return cmd
}

func StartSigner(envCfgPath string) error {
	if len(envCfgPath) <= 0 {
		envCfgPath = confFile(filepath.Join(libs.GetCurRootDir(), "conf/conf.yaml"))
	} else {
		libs.SetRootDir(envCfgPath)
		envCfgPath = filepath.Join(envCfgPath, "conf.yaml")
	}

	cfg, err := libs.GetConfig(envCfgPath)
	if err != nil {
		return fmt.Errorf("load configuration failed, err: %v", err)
	}

	logger := logs.NewLogger()
	n, err := node.NewNode(cfg, logger)
	if err != nil {
		return fmt.Errorf("new a node failed, cfg: %+v, err: %v", cfg, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := n.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	n.Stop()
	return nil
}
