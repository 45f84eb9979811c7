package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version はビルド時に-ldflagsで上書きされる。
var Version = "dev"

// NewRootCommand はCLIのルートコマンドを生成する。
// サブコマンドが指定されない場合はserveとして動作する。
// ログはlogWriterに出力し、checkの結果はコマンドの標準出力に書き込む。
func NewRootCommand(logWriter io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "skylight-chores",
		Short:         "Skylightのチョア完了状態をセンサーとして公開するサービス",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd, logWriter)
		},
	}

	root.AddCommand(
		newServeCmd(logWriter),
		newMigrateCmd(logWriter),
		newCheckCmd(logWriter),
		newHealthcheckCmd(),
	)
	return root
}

func newServeCmd(logWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーとポーリングスケジューラを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd, logWriter)
		},
	}
}

func newMigrateCmd(logWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "データベースマイグレーションを適用する（DATABASE_URLが必要）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(logWriter)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

func newCheckCmd(logWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "環境変数の認証情報でログインし、カテゴリごとの完了状態をJSONで出力する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(logWriter)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

// newHealthcheckCmd はdistroless環境でのDockerヘルスチェック用サブコマンド。
// 軽量に動作させるため設定の読み込みはSERVER_PORTのみとする。
func newHealthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "ローカルの/healthエンドポイントを確認する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(cmd.Context(), port)
		},
	}
}

// serveCommand は設定を読み込み、SIGINT/SIGTERMで停止するコンテキストでサーバーを起動する。
func serveCommand(cmd *cobra.Command, logWriter io.Writer) error {
	cfg, err := Init(logWriter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
