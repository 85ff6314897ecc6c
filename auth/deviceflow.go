package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var idTokenScopes = []string{"openid", "email", "profile"}

// DeviceTokenSource signs in through the OAuth2 device authorization flow:
// the user opens the verification page on any device and types the code
type DeviceTokenSource struct {
	config *oauth2.Config
	prompt func(verificationURI string, userCode string)
}

func NewGoogleDeviceTokenSource(clientID string, clientSecret string, prompt func(verificationURI string, userCode string)) *DeviceTokenSource {
	return &DeviceTokenSource{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       idTokenScopes,
		},
		prompt: prompt,
	}
}

func (d *DeviceTokenSource) IDToken(ctx context.Context) (string, error) {
	resp, err := d.config.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("device authorization: %w", err)
	}
	if d.prompt != nil {
		d.prompt(resp.VerificationURI, resp.UserCode)
	}
	token, err := d.config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return "", fmt.Errorf("device access token: %w", err)
	}
	return idTokenOf(token)
}

func idTokenOf(token *oauth2.Token) (string, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errors.New("token response without id_token")
	}
	return raw, nil
}

// StaticTokenSource always returns the same ID token
type StaticTokenSource string

func (s StaticTokenSource) IDToken(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty id token")
	}
	return string(s), nil
}
