// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the canvas service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header
// and compares it against the service's shared secret. When no secret is
// configured the service runs open, which is the expected mode for local
// single-user deployments.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth creates a Gin middleware that gates requests on a shared
// bearer secret.
//
// # Description
//
// Requests must carry "Authorization: Bearer <secret>". An empty secret
// disables the check entirely.
//
// # Inputs
//
//   - secret: The shared secret, or "" to run open.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		token := extractBearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing bearer token",
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// Returns "" when the header is missing or not a Bearer scheme.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
