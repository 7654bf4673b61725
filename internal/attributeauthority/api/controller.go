/*******************************************************************************
* Copyright (C) 2025 the Shibboleth Go Components Authors
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/internet2/shibboleth-go-components/internal/attributeauthority/logger"
	"github.com/internet2/shibboleth-go-components/internal/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AttributeQueryResponse is the payload of a successful attribute query.
type AttributeQueryResponse struct {
	Principal  string              `json:"principal"`
	Requester  string              `json:"requester,omitempty"`
	Resource   string              `json:"resource,omitempty"`
	Attributes map[string][]string `json:"attributes"`
}

// AttributeAuthorityController exposes the attribute query endpoint.
type AttributeAuthorityController struct {
	service *AttributeAuthorityService
}

// NewAttributeAuthorityController creates a controller over the service.
func NewAttributeAuthorityController(service *AttributeAuthorityService) *AttributeAuthorityController {
	return &AttributeAuthorityController{service: service}
}

// RegisterRoutes mounts the attribute query endpoint on the router.
func (c *AttributeAuthorityController) RegisterRoutes(r chi.Router) {
	r.Get("/attributes", c.GetAttributes)
}

// GetAttributes handles GET /attributes. Query parameters: principal
// (required), requester, resource, and names (comma separated, optional).
func (c *AttributeAuthorityController) GetAttributes(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.NewString()

	principal := r.URL.Query().Get("principal")
	if principal == "" {
		writeError(w, http.StatusBadRequest, correlationID, common.NewErrBadRequest("query parameter principal is required"))
		return
	}
	requester := r.URL.Query().Get("requester")
	resource := r.URL.Query().Get("resource")

	var names []string
	if raw := r.URL.Query().Get("names"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}

	released, err := c.service.ReleaseAttributes(principal, requester, resource, names)
	if err != nil {
		logger.LogError("GetAttributes (correlationId="+correlationID+")", err)
		writeError(w, http.StatusInternalServerError, correlationID, common.NewInternalServerError("attribute query failed"))
		return
	}

	writeJSON(w, http.StatusOK, AttributeQueryResponse{
		Principal:  principal,
		Requester:  requester,
		Resource:   resource,
		Attributes: released,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.LogError("encoding response", err)
	}
}

func writeError(w http.ResponseWriter, status int, correlationID string, err error) {
	payload := common.NewTimestampedErrorHandler("Exception", err, http.StatusText(status), correlationID)
	writeJSON(w, status, payload)
}
