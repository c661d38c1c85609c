package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/zira/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  "Start the HTTP API server.\nBy default it listens on port 8080. Use --port to change it.\nRequests authenticate with 'Authorization: Bearer <credential>' against the identity.users config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getService()
		if err != nil {
			return err
		}

		llmClient := newLLMClient()
		if llmClient == nil {
			ui.VerboseLog("No Anthropic API key configured; issue enrichment disabled")
		}

		srv := api.NewServer(svc, getDirectory(), llmClient)

		port := viper.GetInt("server.port")
		addr := fmt.Sprintf(":%d", port)
		ui.Info("Serving API at http://localhost%s/api/v1", addr)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
