// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func postJSON(path string, body map[string]string) (*http.Response, map[string]any) {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(env.baseURL+path, "application/json", bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	Expect(resp.Body.Close()).To(Succeed())
	return resp, decoded
}

func getJSON(path string, headers map[string]string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(http.MethodGet, env.baseURL+path, nil)
	Expect(err).NotTo(HaveOccurred())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	Expect(resp.Body.Close()).To(Succeed())
	return resp, decoded
}

var _ = Describe("Auth flows", Ordered, func() {
	var (
		email = fmt.Sprintf("flow-%d@example.com", GinkgoRandomSeed())
		token string
	)

	It("registers a new account", func() {
		resp, body := postJSON("/api/auth/signup", map[string]string{
			"email":    email,
			"password": "Sup3rsecret",
			"name":     "Flow Tester",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(body["token"]).NotTo(BeEmpty())

		user := body["user"].(map[string]any)
		Expect(user["email"]).To(Equal(email))
		Expect(user).NotTo(HaveKey("password_hash"))
	})

	It("rejects a second signup with the same email", func() {
		resp, body := postJSON("/api/auth/signup", map[string]string{
			"email":    email,
			"password": "Sup3rsecret",
			"name":     "Flow Tester",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(body["error"]).To(Equal("email already registered"))
	})

	It("logs in with the right password", func() {
		resp, body := postJSON("/api/auth/login", map[string]string{
			"email":    email,
			"password": "Sup3rsecret",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body["token"]).NotTo(BeEmpty())
		token = body["token"].(string)

		user := body["user"].(map[string]any)
		Expect(user["last_login"]).NotTo(BeEmpty())
	})

	It("rejects the wrong password with the generic error", func() {
		resp, body := postJSON("/api/auth/login", map[string]string{
			"email":    email,
			"password": "Wr0ngpassword",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(body["error"]).To(Equal("invalid email or password"))
	})

	It("resolves the bearer token to the account", func() {
		resp, body := getJSON("/api/auth/me", map[string]string{
			"Authorization": "Bearer " + token,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		user := body["user"].(map[string]any)
		Expect(user["email"]).To(Equal(email))
	})

	It("rejects a tampered token", func() {
		resp, body := getJSON("/api/auth/me", map[string]string{
			"Authorization": "Bearer " + token + "x",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(body["error"]).To(Equal("invalid token"))
	})

	It("reports healthy while the store is reachable", func() {
		resp, body := getJSON("/health", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body["status"]).To(Equal("healthy"))
		Expect(body["timestamp"]).NotTo(BeEmpty())
	})
})
