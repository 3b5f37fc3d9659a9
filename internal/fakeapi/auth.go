package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type tokenRequest struct {
	UserType    string `json:"user_type" binding:"required"`
	CommunityID *int   `json:"community_id"`
	Username    string `json:"username"`
	Password    string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Role        string `json:"role"`
}

func (s *Server) issueToken(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}

	var subject string
	switch req.UserType {
	case "community":
		if req.CommunityID == nil {
			detail(c, http.StatusBadRequest, "'community_id' is required for community users")
			return
		}
		if !s.verifyCommunity(*req.CommunityID, req.Password) {
			c.Header("WWW-Authenticate", "Bearer")
			detail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		subject = fmt.Sprintf("community:%d", *req.CommunityID)
	case "gov":
		if req.Username == "" {
			detail(c, http.StatusBadRequest, "'username' is required for gov users")
			return
		}
		h, ok := s.govHashes[req.Username]
		if !ok || bcrypt.CompareHashAndPassword(h, []byte(req.Password)) != nil {
			c.Header("WWW-Authenticate", "Bearer")
			detail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		subject = "gov:" + req.Username
	default:
		detail(c, http.StatusBadRequest, "'user_type' must be either 'community' or 'gov'")
		return
	}

	token, err := s.signToken(subject, req.UserType)
	if err != nil {
		detail(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.opts.TokenTTL.Seconds()),
		Role:        req.UserType,
	})
}

func (s *Server) verifyCommunity(id int, password string) bool {
	s.db.mu.Lock()
	row, ok := s.db.communities[id]
	var hash []byte
	if ok {
		hash = row.passwordHash
	}
	s.db.mu.Unlock()
	return ok && bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (s *Server) signToken(subject, role string) (string, error) {
	now := s.opts.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
}

func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.Now),
		jwt.WithExpirationRequired(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.opts.JWTSecret), nil
	}); err != nil {
		return nil, err
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, errors.New("missing sub")
	}
	if role, _ := claims["role"].(string); role == "" {
		return nil, errors.New("missing role")
	}
	return claims, nil
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) <= 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		claims, err := s.parseToken(strings.TrimSpace(authHeader[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			return
		}
		c.Set("sub", claims["sub"])
		c.Set("role", claims["role"])
		c.Next()
	}
}

// requireGov runs after requireToken and rejects tokens without the gov role.
func (s *Server) requireGov() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != "gov" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Insufficient permissions. Gov role required."})
			return
		}
		c.Next()
	}
}
