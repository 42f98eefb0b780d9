package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, form url.Values) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return 0, nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(strings.TrimSpace(string(body)))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("SOCIALJOHN_URL", "http://localhost:8080")
		out     = envOr("SOCIALJOHN_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "socialctl",
		Short: "CLI para probar el login social contra un servicio en ejecución",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env SOCIALJOHN_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.OutFormat = out
	}

	var provider, token string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Intercambia un access token del provider por un token local",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider es requerido")
			}
			if token == "" {
				return fmt.Errorf("--token es requerido")
			}
			path := "/social/" + url.PathEscape(provider) + "/"
			status, body, err := cl.do(http.MethodPost, path, url.Values{"access_token": {token}})
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("login fallo: status=%d body=%s", status, strings.TrimSpace(string(body)))
			}
			cl.print(status, body)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&provider, "provider", "", "Provider: facebook|google-oauth2")
	loginCmd.Flags().StringVar(&token, "token", "", "Access token emitido por el provider")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Lista los providers habilitados",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do(http.MethodGet, "/social/providers", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("providers fallo: status=%d body=%s", status, strings.TrimSpace(string(body)))
			}
			cl.print(status, body)
			return nil
		},
	}

	root.AddCommand(loginCmd, providersCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
