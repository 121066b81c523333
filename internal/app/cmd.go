package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// newRootCommand はmeishiのCLIを構築する。
// サブコマンドなしで起動した場合はserveと同じ動作をする。
func newRootCommand(w io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meishi",
		Short: "デジタル名刺サービス",
		Long: `meishi はvCard形式のデジタル名刺を作成・公開し、
QR/NFC経由の閲覧を集計するAPIサーバー。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, w, "serve", runServe)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "APIサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, w, "serve", runServe)
		},
	}

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "期限切れセッションと古いスキャン記録の定期削除を実行する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, w, "worker", runWorker)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "データベースマイグレーションを適用する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, w, "migrate", runMigrate)
		},
	}

	// healthcheck は軽量サブコマンドのため、設定の読み込みをスキップする
	var healthAddr string
	healthcheckCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "稼働中のAPIサーバーの /health を確認する",
		Long:  "distroless環境でのDockerヘルスチェック用。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(cmd.Context(), healthAddr)
		},
	}
	healthcheckCmd.Flags().StringVar(&healthAddr, "addr", defaultHealthcheckAddr(), "ヘルスチェック先のhost:port")

	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, healthcheckCmd)
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
	return rootCmd
}

func defaultHealthcheckAddr() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return "localhost:" + port
}
