package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"gopkg.in/yaml.v3"
)

const credentialsFile = "credentials.yaml"

var errNotLoggedIn = errors.New("not logged in, run `genie login` first")

type credentials struct {
	Server       string `yaml:"server"`
	UserID       string `yaml:"user_id"`
	Email        string `yaml:"email"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

func credentialsPath(home string) string {
	return filepath.Join(home, credentialsFile)
}

func loadCredentials(home string) (*credentials, error) {
	b, err := os.ReadFile(credentialsPath(home))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	var c credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", credentialsFile, err)
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil, errNotLoggedIn
	}
	return &c, nil
}

func saveCredentials(home string, c *credentials) error {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(credentialsPath(home), b, 0o600)
}

func credentialsFromSession(server string, s threadclient.Session) *credentials {
	return &credentials{
		Server:       server,
		UserID:       s.User.ID,
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
}

func (c *credentials) session() threadclient.Session {
	return threadclient.Session{
		User:         threadclient.User{ID: c.UserID, Email: c.Email},
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
}
