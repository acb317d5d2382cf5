package cli

var NewMCPServer = newMCPServer

const AskQuestionTool = askQuestionTool
