package feed

const postFields = `id authorId content imageUrl createdAt likesCount commentsCount`

const (
	queryGetFeed = `query getFeed {
  getFeed { ` + postFields + ` }
}`

	queryGetUserPosts = `query getUserPosts($authorId: String!) {
  getUserPosts(authorId: $authorId) { ` + postFields + ` }
}`

	mutationCreatePost = `mutation createPost($content: String!, $imageUrl: String) {
  createPost(content: $content, imageUrl: $imageUrl) { ` + postFields + ` }
}`

	userFields = `id username bio profilePicUrl coverPicUrl`

	queryMe = `query me {
  me { ` + userFields + ` }
}`

	queryGetUser = `query getUser($id: ID!) {
  getUser(id: $id) { ` + userFields + ` }
}`
)
