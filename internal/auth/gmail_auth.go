package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// GmailConfig reads the OAuth client (credentials.json) with read-only Gmail scope.
func GmailConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	return cfg, nil
}

// GmailClient returns an HTTP client authorized with the token stored in tokenFile.
// The server never prompts; run `jobtrackr inbox-auth` once to create the token.
func GmailClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	cfg, err := GmailConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no stored gmail token at %s: %w", tokenFile, err)
	}
	return cfg.Client(ctx, tok), nil
}

// AuthorizeGmail runs the interactive consent flow: it prints the consent URL to out, reads
// the authorization code from in and stores the resulting token in tokenFile.
func AuthorizeGmail(ctx context.Context, credentialsFile, tokenFile string, in io.Reader, out io.Writer) error {
	cfg, err := GmailConfig(credentialsFile)
	if err != nil {
		return err
	}

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link to authorize Gmail access:\n%v\n\nPaste the code here: ", authURL)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return saveToken(tokenFile, tok)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
