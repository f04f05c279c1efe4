package handlers

import (
	"errors"
	"log"

	"obrolan/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ChatHandler handles HTTP requests for contacts and direct messages.
// All of its routes require an authenticated session.
type ChatHandler struct {
	service *services.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *services.ChatService) *ChatHandler {
	return &ChatHandler{
		service: service,
	}
}

// RegisterRoutes registers the chat routes. The router passed in must
// already carry the session middleware.
func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/users", h.HandleGetContacts)
	messageRoutes := router.Group("/messages")
	messageRoutes.Get("/:id", h.HandleGetConversation)
	messageRoutes.Post("/:id", h.HandleSendMessage)
}

// HandleGetContacts lists every other user for the conversation sidebar.
func (h *ChatHandler) HandleGetContacts(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	contacts, err := h.service.ListContacts(userID)
	if err != nil {
		log.Printf("Error listing contacts for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}
	return c.JSON(contacts)
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// HandleSendMessage stores a direct message to the user in the :id param.
func (h *ChatHandler) HandleSendMessage(c *fiber.Ctx) error {
	senderID, _ := c.Locals("user_id").(string)
	receiverID := c.Params("id")

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing send message request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid message data",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message body is required",
		})
	}

	message, err := h.service.SendMessage(senderID, receiverID, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrRecipientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Recipient not found",
			})
		}
		log.Printf("Error sending message from %s to %s: %v", senderID, receiverID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// HandleGetConversation returns the message history with the user in the
// :id param, oldest first.
func (h *ChatHandler) HandleGetConversation(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	otherID := c.Params("id")

	messages, err := h.service.GetConversation(userID, otherID)
	if err != nil {
		log.Printf("Error getting conversation between %s and %s: %v", userID, otherID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}
	return c.JSON(messages)
}
