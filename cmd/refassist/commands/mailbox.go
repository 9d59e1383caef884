package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"refassist-backend/lib/configutil"
	"refassist-backend/lib/oauth"
	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/keychain"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

const (
	googleAuthUrl  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenUrl = "https://oauth2.googleapis.com/token"
	gmailScope     = "https://www.googleapis.com/auth/gmail.readonly"
	// out-of-band style redirect, the code is pasted back into the terminal
	redirectUri = "http://localhost"
)

func init() {
	mailboxCmd.AddCommand(mailboxLoginCmd)
	rootCmd.AddCommand(mailboxCmd)
}

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Manages the Gmail account used for correlation and 2FA codes.",
}

var mailboxLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Runs the Google OAuth code flow and stores the token in the keychain.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		clientId := configutil.Env("GOOGLE_CLIENT_ID")
		clientSecret := configutil.Env("GOOGLE_CLIENT_SECRET")
		if clientId == "" || clientSecret == "" {
			serviceutil.Fatal(
				"missing oauth client",
				fmt.Errorf("set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment or .env"),
			)
		}

		loginUrl, err := oauth.GetLoginUrl(cmd.Context(), oauth.AuthCodeRequest{
			AccessType:  "offline",
			Scope:       gmailScope,
			RedirectUri: redirectUri,
			ClientId:    clientId,
		}, googleAuthUrl)
		if err != nil {
			serviceutil.Fatal("failed to build login url", err)
		}

		fmt.Println("open this url in a browser, authorize, then paste the ?code= value back here:")
		fmt.Println()
		fmt.Println(loginUrl)
		fmt.Println()
		fmt.Print("code: ")

		reader := bufio.NewReader(os.Stdin)
		code, err := reader.ReadString('\n')
		if err != nil {
			serviceutil.Fatal("failed to read code", err)
		}
		code = strings.TrimSpace(code)

		form := url.Values{}
		form.Add("grant_type", "authorization_code")
		form.Add("client_id", clientId)
		form.Add("client_secret", clientSecret)
		form.Add("redirect_uri", redirectUri)
		form.Add("code", code)

		res, err := resty.New().R().
			SetContext(cmd.Context()).
			SetHeader("content-type", "application/x-www-form-urlencoded").
			SetBody(form.Encode()).
			Post(googleTokenUrl)
		if err != nil {
			serviceutil.Fatal("token exchange failed", err)
		}

		var token oauth.OpenIdToken
		err = json.Unmarshal(res.Body(), &token)
		if err != nil {
			serviceutil.Fatal("failed to decode token response", err)
		}
		if token.AccessToken == "" {
			serviceutil.Fatal("token exchange rejected", fmt.Errorf("response: %s", res.Body()))
		}

		kc := openKeychain(cmd.Context(), cfg)
		err = kc.SetOAuth(cmd.Context(), keychain.OAuthEntry{
			Namespace:  "google",
			ID:         "mailbox",
			RefreshUrl: googleTokenUrl,
			ClientID:   clientId,
			Token:      token,
			ExpiresAt:  time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		})
		if err != nil {
			serviceutil.Fatal("failed to store token", err)
		}

		fmt.Println("mailbox token stored")
	},
}
