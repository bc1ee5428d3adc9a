package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nordiq/mailroom/services/mock-server/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth2 client-credentials token endpoint
	r.POST("/token/:directoryId", handleToken)

	// Graph mail API subset
	users := r.Group("/users/:mailbox")
	{
		users.GET("/mailFolders", handleListFolders)
		users.POST("/mailFolders", handleCreateFolder)
		users.GET("/mailFolders/inbox/messages", handleListUnread)
		users.GET("/messages/:messageId", handleGetMessage)
		users.GET("/messages/:messageId/attachments", handleGetAttachments)
		users.POST("/messages/:messageId/move", handleMoveMessage)
		users.DELETE("/messages/:messageId", handleDeleteMessage)
	}

	// Messaging API
	v1 := r.Group("/v1")
	{
		v1.POST("/sms", handleSendSMS)
		v1.POST("/alerts", handleSendAlert)
	}

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/messages/add", handleAddMessages)
		admin.GET("/outbox", handleGetOutbox)
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting Mailroom Mock API server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func handleToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"access_token": "mock-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func handleListUnread(c *gin.Context) {
	mailbox := c.Param("mailbox")

	top, err := strconv.Atoi(c.DefaultQuery("$top", "50"))
	if err != nil || top < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid $top"})
		return
	}
	skip, err := strconv.Atoi(c.DefaultQuery("$skip", "0"))
	if err != nil || skip < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid $skip"})
		return
	}

	messages, more := mock.ListUnread(mailbox, skip, top)

	resp := gin.H{"value": messages}
	if more {
		resp["@odata.nextLink"] = fmt.Sprintf("http://%s/users/%s/mailFolders/inbox/messages?$top=%d&$skip=%d",
			c.Request.Host, mailbox, top, skip+top)
	}
	c.JSON(http.StatusOK, resp)
}

func handleGetMessage(c *gin.Context) {
	msg, ok := mock.GetMessage(c.Param("mailbox"), c.Param("messageId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func handleGetAttachments(c *gin.Context) {
	attachments, ok := mock.GetAttachments(c.Param("mailbox"), c.Param("messageId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": attachments})
}

func handleMoveMessage(c *gin.Context) {
	var req struct {
		DestinationID string `json:"destinationId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.DestinationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destinationId required"})
		return
	}

	if !mock.MoveMessage(c.Param("mailbox"), c.Param("messageId"), req.DestinationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message or folder not found"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": c.Param("messageId")})
}

func handleDeleteMessage(c *gin.Context) {
	if !mock.DeleteMessage(c.Param("mailbox"), c.Param("messageId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func handleListFolders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"value": mock.ListFolders(c.Param("mailbox"))})
}

func handleCreateFolder(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName required"})
		return
	}

	folder := mock.CreateFolder(c.Param("mailbox"), req.DisplayName)
	c.JSON(http.StatusCreated, folder)
}

func handleSendSMS(c *gin.Context) {
	var req struct {
		TenantID     string `json:"tenant_id"`
		Sender       string `json:"sender"`
		Message      string `json:"message"`
		MobileNumber string `json:"mobile_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Message == "" || req.MobileNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message and mobile_number required"})
		return
	}

	mock.RecordSMS(req.TenantID, req.Sender, req.Message, req.MobileNumber)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func handleSendAlert(c *gin.Context) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mock.RecordAlert(req.Subject, req.Body)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func handleAddMessages(c *gin.Context) {
	var req struct {
		Mailbox string `json:"mailbox"`
		Count   int    `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Mailbox == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mailbox required"})
		return
	}
	if req.Count < 1 {
		req.Count = 1
	}

	total, err := mock.AddMessages(req.Mailbox, req.Count)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"added":   req.Count,
		"total":   total,
		"message": fmt.Sprintf("Added %d message(s) to %s. Total messages: %d", req.Count, req.Mailbox, total),
	})
}

func handleGetOutbox(c *gin.Context) {
	sms, alerts := mock.Outbox()
	c.JSON(http.StatusOK, gin.H{"sms": sms, "alerts": alerts})
}
