package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           litertd API
// @version         0.1.0
// @description     HTTP API bridging chat, streaming, and structured output onto an on-device LLM runtime.
//
// @contact.name   litertd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
