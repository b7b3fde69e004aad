package llm

// The cmd binaries close the backend through the constructor's return type,
// so the concrete client must satisfy Client, not just TextGenerator.
var _ Client = (*geminiClient)(nil)
